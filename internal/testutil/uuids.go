// Package testutil holds deterministic fixtures shared by package tests.
package testutil

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SequentialUUIDs hands out predictable row identities for tests.
//
// The n-th call to Next returns 00000000-0000-4000-8000-<n as 12 hex
// digits>, which is a valid version 4 UUID, so golden output and assertions
// can spell ids out literally.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SequentialUUIDs struct {
	mu sync.Mutex
	n  uint64
}

// NewSequentialUUIDs creates a source whose first id ends in ...000000000001.
func NewSequentialUUIDs() *SequentialUUIDs {
	return &SequentialUUIDs{}
}

// Next returns the next id. Its signature matches engine.WithIDSource.
func (s *SequentialUUIDs) Next() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return UUID(s.n)
}

// Reset rewinds the source so the next id is ...000000000001 again.
func (s *SequentialUUIDs) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}

// UUID returns the n-th id of a SequentialUUIDs source.
func UUID(n uint64) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-4000-8000-%012x", n))
}
