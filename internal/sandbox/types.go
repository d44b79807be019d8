package sandbox

import (
	"errors"
	"time"
)

var (
	ErrPoolClosed        = errors.New("sandbox pool is closed")
	ErrTimeout           = errors.New("sandbox execution timeout")
	ErrClosed            = errors.New("sandbox runtime is closed")
	ErrNoScript          = errors.New("document has no inline script")
	ErrScriptNotInjected = errors.New("provider script was not injected")
	ErrNoWidget          = errors.New("no widget rendered")
)

// Config defines sandbox configuration
type Config struct {
	MaxCallStackSize int           // Maximum JS call depth, 0 keeps the goja default
	Timeout          time.Duration // Limit for every call into the VM
	AcquireTimeout   time.Duration // Pool acquisition limit
	EnableConsole    bool          // Allow console.log/debug/warn/error
}

// Result holds execution result
type Result struct {
	Value      interface{}   // Return value
	Console    []LogEntry    // Console output
	DOMChanges []DOMChange   // DOM modifications
	Duration   time.Duration // Execution time
	Error      error         // Execution error
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, debug, info, warn, error
	Message string    // Log message
	Time    time.Time // Timestamp
}

// DOMChange represents a DOM modification
type DOMChange struct {
	Type     string      // append_child, set_attribute
	Selector string      // Parent or target description
	Property string      // Child tag or attribute name
	Value    interface{} // New value
}

// DefaultConfig returns the configuration used by the preview service.
func DefaultConfig() Config {
	return Config{
		MaxCallStackSize: 1024,
		Timeout:          5 * time.Second,
		AcquireTimeout:   5 * time.Second,
		EnableConsole:    true,
	}
}
