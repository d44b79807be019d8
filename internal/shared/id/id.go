// Package id generates the identifiers used for request tracing.
//
// IDs are ULIDs: lexicographically sortable by creation time, so trace
// lines can be ordered without a separate timestamp. Typed IDs carry a
// short prefix (trc_, spn_) to keep logs readable.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TraceID identifies one request flow
type TraceID string

// SpanID identifies one operation within a trace
type SpanID string

// ID prefixes
const (
	TracePrefix = "trc"
	SpanPrefix  = "spn"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// for deterministic tests
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewTraceID generates a new trace ID
func NewTraceID() TraceID {
	return TraceID(Default().GenerateWithPrefix(TracePrefix))
}

// NewSpanID generates a new span ID
func NewSpanID() SpanID {
	return SpanID(Default().GenerateWithPrefix(SpanPrefix))
}

func (id TraceID) String() string { return string(id) }
func (id SpanID) String() string  { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

// IsValidTraceID checks an incoming trace header: either a prefixed ID
// issued here or a bare ULID from an upstream service.
func IsValidTraceID(s string) bool {
	return validPrefixed(s, TracePrefix)
}

// IsValidSpanID is IsValidTraceID for span headers.
func IsValidSpanID(s string) bool {
	return validPrefixed(s, SpanPrefix)
}

func validPrefixed(s, prefix string) bool {
	if rest, ok := strings.CutPrefix(s, prefix+"_"); ok {
		return IsValid(rest)
	}
	return IsValid(s)
}

// Timestamp extracts the timestamp from a ULID, prefixed or not
func Timestamp(id string) (time.Time, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
