// Package id provides centralized ID generation for the module registry.
//
// This package offers ULID generation with:
//   - Lexicographic sortability: staging and trash directories sort by creation time
//   - Prefixed types: Type-specific prefixes for debugging (evt_*, trc_*)
//   - Type safety: Separate types prevent ID misuse
//
// Design Principles:
//   - ULIDs only: Single ID format across the service
//   - K-sortable: Timeline queries without timestamps
//   - Debuggable: Prefixes make logs readable
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// EventID identifies a published lifecycle event
type EventID string

// TraceID identifies a traced API request
type TraceID string

// ============================================================================
// ID Prefixes (for debugging and type identification)
// ============================================================================

const (
	EventPrefix = "evt"
	TracePrefix = "trc"
)

// ============================================================================
// ULID Generator (Primary)
// ============================================================================

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

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
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

// ============================================================================
// Typed ID Generators
// ============================================================================

// NewEventID generates a new event ID
func NewEventID() EventID {
	return EventID(Default().GenerateWithPrefix(EventPrefix))
}

// NewTraceID generates a new trace ID
func NewTraceID() TraceID {
	return TraceID(Default().GenerateWithPrefix(TracePrefix))
}

// New returns a bare ULID string, used for staging and trash directory names
func New() string {
	return Default().GenerateString()
}

func (id EventID) String() string { return string(id) }
func (id TraceID) String() string { return string(id) }

// ============================================================================
// Parsing
// ============================================================================

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}
