package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator generates operation ids "<prefix>-1", "<prefix>-2", ...
//
// Unlike session.FixedGenerator it never runs out, and Reset makes the same
// scenario produce the same ids on every run, which keeps golden files
// stable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int64
}

// NewSequentialIDGenerator creates a generator. An empty prefix becomes "op".
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "op"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next id.
// Implements session.IDGenerator.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts numbering. After Reset, the next id ends in "-1".
func (g *SequentialIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
