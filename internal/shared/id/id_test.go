package id

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
	if id2.String() <= id1.String() {
		t.Errorf("IDs from one generator should be increasing: %s then %s", id1, id2)
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{TracePrefix, SpanPrefix} {
		id := gen.GenerateWithPrefix(prefix)

		parts := strings.Split(id, "_")
		if len(parts) != 2 || parts[0] != prefix {
			t.Errorf("ID should have format '%s_ulid', got: %s", prefix, id)
			continue
		}
		if len(parts[1]) != 26 || !IsValid(parts[1]) {
			t.Errorf("ULID part should be valid: %s", parts[1])
		}
	}
}

func TestTypedIDGeneration(t *testing.T) {
	traceID := NewTraceID()
	spanID := NewSpanID()

	if !strings.HasPrefix(traceID.String(), "trc_") {
		t.Errorf("TraceID should start with 'trc_', got: %s", traceID)
	}
	if !strings.HasPrefix(spanID.String(), "spn_") {
		t.Errorf("SpanID should start with 'spn_', got: %s", spanID)
	}
}

func TestIsValidTraceID(t *testing.T) {
	bare := NewGenerator().GenerateString()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "issued trace id", input: string(NewTraceID()), want: true},
		{name: "bare ulid", input: bare, want: true},
		{name: "span prefix", input: "spn_" + bare, want: false},
		{name: "empty", input: "", want: false},
		{name: "garbage", input: "trc_not-a-ulid", want: false},
		{name: "header injection", input: "trc_" + bare + "\r\nX-Evil: 1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTraceID(tt.input); got != tt.want {
				t.Errorf("IsValidTraceID(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsValidSpanID(t *testing.T) {
	bare := NewGenerator().GenerateString()

	if !IsValidSpanID(string(NewSpanID())) {
		t.Error("issued span id rejected")
	}
	if !IsValidSpanID(bare) {
		t.Error("bare ulid rejected")
	}
	if IsValidSpanID(string(NewTraceID())) {
		t.Error("trace id accepted as span id")
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now()
	traceID := NewTraceID()
	after := time.Now()

	ts, err := Timestamp(traceID.String())
	if err != nil {
		t.Fatalf("Failed to extract timestamp: %v", err)
	}

	// ULID timestamps have millisecond precision
	if ts.UnixMilli() < before.UnixMilli() || ts.UnixMilli() > after.UnixMilli() {
		t.Errorf("Timestamp %v should be between %v and %v", ts, before, after)
	}

	if _, err := Timestamp("trc_invalid"); err == nil {
		t.Error("Expected error for invalid ID")
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const goroutines = 50
	const idsPerGoroutine = 100

	var wg sync.WaitGroup
	idChan := make(chan string, goroutines*idsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < idsPerGoroutine; j++ {
				idChan <- gen.GenerateString()
			}
		}()
	}

	wg.Wait()
	close(idChan)

	seen := make(map[string]bool)
	for id := range idChan {
		if seen[id] {
			t.Errorf("Duplicate ID found in concurrent generation: %s", id)
		}
		seen[id] = true
	}

	if len(seen) != goroutines*idsPerGoroutine {
		t.Errorf("Expected %d unique IDs, got %d", goroutines*idsPerGoroutine, len(seen))
	}
}

func TestDefaultGenerator(t *testing.T) {
	if Default() != Default() {
		t.Error("Default() should return the same instance")
	}
	if !IsValid(Default().GenerateString()) {
		t.Error("Default generator should produce valid IDs")
	}
}

func BenchmarkGenerateWithPrefix(b *testing.B) {
	gen := NewGenerator()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = gen.GenerateWithPrefix(TracePrefix)
	}
}
