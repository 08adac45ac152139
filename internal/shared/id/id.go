// Package id provides identifier generation for mounts and events.
//
// Mount ids are prefixed ULIDs so they sort by creation time and read
// well in logs (mnt_01J...). Event ids published through the host API
// are plain UUIDs, matching what browser clients usually send.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// MountID identifies one mounted widget instance
type MountID string

// EventID identifies an event published onto the bus
type EventID string

const (
	// MountPrefix prefixes every mount id
	MountPrefix = "mnt"
	// RequestPrefix prefixes trace and span ids
	RequestPrefix = "req"
)

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
	now       func() time.Time
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

// NewGenerator creates a generator backed by crypto/rand with monotonic
// entropy so ids minted in the same millisecond still sort in order.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(ulid.Monotonic(rand.Reader, 0))
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy, now: time.Now}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewMountID generates a new mount id
func NewMountID() MountID {
	return MountID(Default().GenerateWithPrefix(MountPrefix))
}

// NewEventID generates a new event id
func NewEventID() EventID {
	return EventID(uuid.NewString())
}

// NewRequestID generates an id for request tracing
func NewRequestID() string {
	return Default().GenerateWithPrefix(RequestPrefix)
}

func (id MountID) String() string { return string(id) }
func (id EventID) String() string { return string(id) }

// ============================================================================
// Parsing
// ============================================================================

// ParseMountID validates a mount id and returns it typed.
func ParseMountID(s string) (MountID, error) {
	prefix, rest, ok := strings.Cut(s, "_")
	if !ok || prefix != MountPrefix {
		return "", fmt.Errorf("invalid mount id %q: missing %s_ prefix", s, MountPrefix)
	}
	if _, err := ulid.Parse(rest); err != nil {
		return "", fmt.Errorf("invalid mount id %q: %w", s, err)
	}
	return MountID(s), nil
}

// Timestamp extracts the creation time from a mount id
func (id MountID) Timestamp() (time.Time, error) {
	_, rest, _ := strings.Cut(string(id), "_")
	parsed, err := ulid.Parse(rest)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
