package protocol

import "fmt"

// Kind identifies which case of the lifecycle event union is populated.
type Kind string

const (
	KindLoad   Kind = "load"
	KindVerify Kind = "verify"
	KindExpire Kind = "expire"
	KindError  Kind = "error"
)

// Valid reports whether k is one of the four recognized kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindLoad, KindVerify, KindExpire, KindError:
		return true
	}
	return false
}

// HasPayload reports whether messages of this kind carry an element.
func (k Kind) HasPayload() bool {
	return k != KindLoad
}

// Event is a lifecycle message posted by the document. Payload holds the
// token, reason or detail; it is always empty for load.
type Event struct {
	Kind    Kind
	Payload string
}

// Load reports that the widget finished rendering.
func Load() Event { return Event{Kind: KindLoad} }

// Verify carries a verification token.
func Verify(token string) Event { return Event{Kind: KindVerify, Payload: token} }

// Expire carries an expiry reason.
func Expire(reason string) Event { return Event{Kind: KindExpire, Payload: reason} }

// Error carries a failure detail.
func Error(detail string) Event { return Event{Kind: KindError, Payload: detail} }

func (e Event) String() string {
	if !e.Kind.HasPayload() {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s(%q)", e.Kind, e.Payload)
}
