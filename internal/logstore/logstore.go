// Package logstore provides the per-writer append-only log primitive the
// merge engine consumes. Replication of log files between devices happens
// externally; this package only reads and appends local copies.
package logstore

import (
	"sync"
)

// Log is one writer's append-only sequence of opaque entries.
// A log is owned exclusively by the device holding the matching private key;
// other devices only ever read their replicated copy.
type Log interface {
	// Key returns the writer's public key in hex.
	Key() string
	// Len returns the number of entries currently available.
	Len() (int, error)
	// Get returns the entry at index i.
	Get(i int) ([]byte, error)
	// Append adds one entry at the end of the log.
	Append(entry []byte) error
}

// MemoryLog is an in-process Log used by tests and local replicas.
type MemoryLog struct {
	mu      sync.RWMutex
	key     string
	entries [][]byte
}

// NewMemoryLog creates an empty in-memory log for the given writer key.
func NewMemoryLog(key string) *MemoryLog {
	return &MemoryLog{key: key}
}

// Key returns the writer's public key in hex.
func (l *MemoryLog) Key() string { return l.key }

// Len returns the number of entries.
func (l *MemoryLog) Len() (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries), nil
}

// Get returns the entry at index i.
func (l *MemoryLog) Get(i int) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.entries) {
		return nil, errOutOfRange(i, len(l.entries))
	}
	entry := make([]byte, len(l.entries[i]))
	copy(entry, l.entries[i])
	return entry, nil
}

// Append adds one entry at the end of the log.
func (l *MemoryLog) Append(entry []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored := make([]byte, len(entry))
	copy(stored, entry)
	l.entries = append(l.entries, stored)
	return nil
}
