// Package bpstore is an optional, reusable bookkeeping helper for target
// adapters that need to enforce an "at most one record per (type, address)"
// rule over their breakpoints and watchpoints. The dispatcher never imports
// this package directly — it is support infrastructure for Target
// implementations, not part of the Target contract itself.
package bpstore

import (
	"fmt"
	"sync"

	"github.com/coredump-labs/rspd/pkg/target"
)

// Record is one stored breakpoint/watchpoint.
type Record struct {
	Type    target.BreakpointType
	Address uint64
	Size    uint64
}

type key struct {
	typ  target.BreakpointType
	addr uint64
}

// Store is a concurrency-safe map-backed table of breakpoint/watchpoint
// records keyed by (type, address). It does not itself know how to arm or
// disarm hardware; it only tracks what the adapter has agreed to track, and
// optionally enforces a capacity limit per type (for backends with a finite
// number of hardware slots).
type Store struct {
	mu       sync.Mutex
	records  map[key]Record
	capacity map[target.BreakpointType]int // 0 = unlimited
}

// New creates an empty store. capacity, if non-nil, caps the number of
// concurrently-armed records of each listed type; types absent from the map
// are unlimited.
func New(capacity map[target.BreakpointType]int) *Store {
	return &Store{
		records:  make(map[key]Record),
		capacity: capacity,
	}
}

// Add inserts a record, returning target.ErrResourceNotAvailable if the
// type's capacity is exhausted. Re-adding an existing (type, address) pair
// overwrites the size and does not count against capacity.
func (s *Store) Add(typ target.BreakpointType, addr, size uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{typ, addr}
	if _, exists := s.records[k]; !exists {
		if limit, ok := s.capacity[typ]; ok && limit > 0 {
			if s.countLocked(typ) >= limit {
				return target.ErrResourceNotAvailable
			}
		}
	}
	s.records[k] = Record{Type: typ, Address: addr, Size: size}
	return nil
}

// Remove deletes the (type, address) record, if any. Size need not match
// the size it was added with. Removing a record that does not exist is
// not an error: the dispatcher always replies OK to 'z' regardless.
func (s *Store) Remove(typ target.BreakpointType, addr uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key{typ, addr})
}

// Has reports whether a (type, address) record is currently stored.
func (s *Store) Has(typ target.BreakpointType, addr uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[key{typ, addr}]
	return ok
}

// All returns a snapshot of every stored record, in no particular order.
func (s *Store) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out
}

func (s *Store) countLocked(typ target.BreakpointType) int {
	n := 0
	for k := range s.records {
		if k.typ == typ {
			n++
		}
	}
	return n
}

func (k key) String() string {
	return fmt.Sprintf("%d@%#x", k.typ, k.addr)
}
