// Package store holds the exchanges retained for the current monitor session.
package store

import (
	"errors"
	"fmt"
	"sync"
)

// ErrIndexOutOfRange is returned for an index outside [0, Count()) or one
// observed before the most recent Clear.
var ErrIndexOutOfRange = errors.New("capture index out of range")

// CaptureStore is an ordered, append-only list of exchanges. Entries are kept
// msgpack-encoded and every read decodes a private copy, so a stored exchange
// cannot be changed after capture.
//
// Mutation is expected from a single writer; readers may run concurrently.
type CaptureStore struct {
	mu         sync.RWMutex
	entries    [][]byte
	generation uint64
}

// NewCaptureStore creates an empty store.
func NewCaptureStore() *CaptureStore {
	return &CaptureStore{}
}

// Append adds ex at the tail and returns its index.
func (s *CaptureStore) Append(ex *Exchange) (int, error) {
	data, err := Serialize(ex)
	if err != nil {
		return -1, fmt.Errorf("encode exchange: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, data)
	return len(s.entries) - 1, nil
}

// Clear drops every entry. Indices handed out before Clear become invalid.
func (s *CaptureStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.generation++
}

// Get returns a copy of the exchange at index.
func (s *CaptureStore) Get(index int) (*Exchange, error) {
	s.mu.RLock()
	data, err := s.entryLocked(index)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return decodeExchange(data)
}

// GetAt is Get for an index observed at generation. It fails with
// ErrIndexOutOfRange once the store has been cleared since then.
func (s *CaptureStore) GetAt(generation uint64, index int) (*Exchange, error) {
	s.mu.RLock()
	if generation != s.generation {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: index %d belongs to a cleared capture list", ErrIndexOutOfRange, index)
	}
	data, err := s.entryLocked(index)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return decodeExchange(data)
}

// entryLocked returns the encoded entry. Caller must hold mu.
func (s *CaptureStore) entryLocked(index int) ([]byte, error) {
	if index < 0 || index >= len(s.entries) {
		return nil, fmt.Errorf("%w: index %d, count %d", ErrIndexOutOfRange, index, len(s.entries))
	}
	return s.entries[index], nil
}

// Count returns the number of stored exchanges.
func (s *CaptureStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Generation increments on every Clear.
func (s *CaptureStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.generation
}

// Snapshot is a consistent view of a range of the store.
type Snapshot struct {
	Generation uint64
	Total      int
	Offset     int
	Exchanges  []*Exchange
}

// Slice returns up to limit exchanges starting at offset, taken under one
// read lock so the result never mixes entries from before and after a Clear.
// limit <= 0 returns everything from offset.
func (s *CaptureStore) Slice(offset, limit int) (Snapshot, error) {
	s.mu.RLock()
	snap := Snapshot{Generation: s.generation, Total: len(s.entries), Offset: offset}
	if offset < 0 {
		offset = 0
		snap.Offset = 0
	}
	var raw [][]byte
	if offset < len(s.entries) {
		end := len(s.entries)
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		raw = s.entries[offset:end:end]
	}
	s.mu.RUnlock()

	snap.Exchanges = make([]*Exchange, 0, len(raw))
	for _, data := range raw {
		ex, err := decodeExchange(data)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Exchanges = append(snap.Exchanges, ex)
	}
	return snap, nil
}

func decodeExchange(data []byte) (*Exchange, error) {
	var ex Exchange
	if err := Deserialize(data, &ex); err != nil {
		return nil, fmt.Errorf("decode exchange: %w", err)
	}
	// msgpack timestamps lose timezone info; normalize to UTC
	ex.CapturedAt = ex.CapturedAt.UTC()
	return &ex, nil
}
