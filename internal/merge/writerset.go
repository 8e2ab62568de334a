package merge

import (
	"encoding/hex"
	"sort"
	"sync"
)

// AddResult reports the outcome of a membership mutation attempt.
type AddResult int

const (
	// Added means the writer is now part of the set.
	Added AddResult = iota
	// AlreadyMember means the writer was present before the attempt.
	AlreadyMember
	// InvalidKey means the key failed validation and nothing changed.
	InvalidKey
)

// WriterSet is the set of writer logs currently eligible for the merge.
// It bootstraps to the room creator and grows only through add-writer
// entries admitted by the merge engine.
type WriterSet struct {
	mu     sync.RWMutex
	keys   []string // sorted
	member map[string]bool
}

// NewWriterSet creates a writer set containing only the creator.
func NewWriterSet(creator string) *WriterSet {
	ws := &WriterSet{member: make(map[string]bool)}
	if validWriterKey(creator) {
		ws.keys = []string{creator}
		ws.member[creator] = true
	}
	return ws
}

// Add attempts to admit a writer and returns a typed result instead of an
// error: callers inspect the outcome explicitly, they never branch on a
// swallowed failure.
func (ws *WriterSet) Add(key string) AddResult {
	if !validWriterKey(key) {
		return InvalidKey
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.member[key] {
		return AlreadyMember
	}
	ws.member[key] = true
	i := sort.SearchStrings(ws.keys, key)
	ws.keys = append(ws.keys, "")
	copy(ws.keys[i+1:], ws.keys[i:])
	ws.keys[i] = key
	return Added
}

// Contains reports whether the key is currently in the set.
func (ws *WriterSet) Contains(key string) bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.member[key]
}

// Len returns the number of writers in the set.
func (ws *WriterSet) Len() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.keys)
}

// Keys returns the writer keys in lexicographic order. The merge sweeps
// writers in exactly this order so every peer interleaves identically.
func (ws *WriterSet) Keys() []string {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	keys := make([]string, len(ws.keys))
	copy(keys, ws.keys)
	return keys
}

// validWriterKey accepts hex-encoded 32-byte public keys.
func validWriterKey(key string) bool {
	if len(key) != 64 {
		return false
	}
	_, err := hex.DecodeString(key)
	return err == nil
}
