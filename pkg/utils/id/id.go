// Package id generates the identifiers used for documents, chunks,
// conversations and requests.
//
// IDs are ULIDs: 26 characters, lexicographically sortable by creation time,
// generated from a monotonic entropy source so IDs created within the same
// millisecond still sort in creation order.
//
// Usage:
//
//	docID := id.New()                // e.g., "01ARZ3NDEKTSV4RRFFQ69G5FAV"
//	chunkID := id.Chunk(docID, 3)    // e.g., "01ARZ3NDEKTSV4RRFFQ69G5FAV-0003"
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator defines the interface for ID generators.
type Generator interface {
	// Generate creates a new unique ID.
	Generate() string
}

// ULIDGenerator generates monotonic ULIDs. It is safe for concurrent use.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// Option configures a ULIDGenerator.
type Option func(*ULIDGenerator)

// WithEntropy sets the random source.
func WithEntropy(r io.Reader) Option {
	return func(g *ULIDGenerator) { g.entropy = ulid.Monotonic(r, 0) }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(g *ULIDGenerator) { g.now = now }
}

// NewULIDGenerator creates a new ULID generator.
func NewULIDGenerator(opts ...Option) *ULIDGenerator {
	g := &ULIDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate implements Generator.
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy).String()
}

var defaultGenerator = NewULIDGenerator()

// New returns a new ULID from the default generator.
func New() string {
	return defaultGenerator.Generate()
}

// Chunk derives the ID of the seq-th chunk of a document.
func Chunk(docID string, seq int) string {
	return fmt.Sprintf("%s-%04d", docID, seq)
}

// Time returns the creation time encoded in a ULID.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ulid %q: %w", s, err)
	}
	return ulid.Time(u.Time()), nil
}

// IsValid reports whether s is a well-formed ULID.
func IsValid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
