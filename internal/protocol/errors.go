package protocol

import "errors"

var (
	// ErrMalformedMessage is returned when an outward message does not match
	// the wire schema.
	ErrMalformedMessage = errors.New("malformed lifecycle message")

	// ErrNotReady is returned by commands issued before the widget loaded.
	ErrNotReady = errors.New("widget not ready")

	// ErrDuplicateLoad is returned when a second load message arrives.
	ErrDuplicateLoad = errors.New("widget already loaded")

	// ErrInvalidTransition is returned for a state change the lifecycle
	// does not allow.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)
