// Package merge turns N independent per-writer logs into one agreed-upon
// ordered view. The ordering rule is deliberately simple: each writer's
// entries keep that writer's own log order, and writers are swept in
// lexicographic key order, so any two peers holding the same entries
// linearize them identically.
package merge

import (
	"sync"

	"github.com/coveychat/covey/internal/envelope"
	"github.com/coveychat/covey/internal/logstore"
	"github.com/coveychat/covey/internal/types"
)

// Source resolves a writer key to its log. Logs that cannot be resolved yet
// (not replicated to this device) contribute nothing until they appear.
type Source interface {
	Log(key string) (logstore.Log, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(key string) (logstore.Log, error)

// Log calls the wrapped function.
func (f SourceFunc) Log(key string) (logstore.Log, error) { return f(key) }

// Stats counts apply outcomes across the lifetime of an engine.
type Stats struct {
	Applied       uint64 // entries that became view entries
	Dropped       uint64 // malformed or undecryptable entries skipped
	WritersAdded  uint64 // add-writer mutations that grew the writer set
	DuplicateAdds uint64 // add-writer mutations for existing members
	InvalidAdds   uint64 // add-writer mutations with unusable keys
}

// Engine deterministically extends the view from the writer set's logs.
// It is the only component that appends to the view or mutates the writer
// set; external callers only read both.
type Engine struct {
	mu      sync.Mutex
	writers *WriterSet
	source  Source
	codec   *envelope.Codec
	view    *View
	applied map[string]int // per-writer count of entries already applied
	stats   Stats
}

// NewEngine creates an engine over the given writer set, log source, codec,
// and view.
func NewEngine(writers *WriterSet, source Source, codec *envelope.Codec, view *View) *Engine {
	return &Engine{
		writers: writers,
		source:  source,
		codec:   codec,
		view:    view,
		applied: make(map[string]int),
	}
}

// View returns the engine's view.
func (e *Engine) View() *View { return e.view }

// Writers returns the engine's writer set.
func (e *Engine) Writers() *WriterSet { return e.writers }

// Stats returns a copy of the apply counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Merge drains every new entry available across the writer set's logs and
// applies them in the deterministic order. A writer admitted mid-merge is
// drained within the same call. Merge never rolls back: entries already
// assigned a seq keep it regardless of later errors.
//
// The returned count is the number of new view entries. I/O errors from a
// single log stall only that log; the merge keeps going and reports the
// first error encountered.
func (e *Engine) Merge() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	admitted := 0
	var firstErr error

	for {
		progress := false
		for _, key := range e.writers.Keys() {
			log, err := e.source.Log(key)
			if err != nil || log == nil {
				continue
			}
			length, err := log.Len()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			for i := e.applied[key]; i < length; i++ {
				raw, err := log.Get(i)
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					break
				}
				if e.apply(raw) {
					admitted++
				}
				e.applied[key] = i + 1
				progress = true
			}
		}
		if !progress {
			break
		}
	}

	return admitted, firstErr
}

// apply decides what one raw entry becomes: a membership mutation plus an
// audit view entry, a plain view entry, or nothing. It reports whether a
// view entry was appended.
func (e *Engine) apply(raw []byte) bool {
	msg, ok := e.codec.Decrypt(raw)
	if !ok || !msg.Valid() {
		e.stats.Dropped++
		return false
	}

	if msg.Kind == types.KindSystem && msg.Action == types.ActionAddWriter {
		key := ""
		if msg.Data != nil && msg.Data.WriterKey != nil {
			key = *msg.Data.WriterKey
		}
		switch e.writers.Add(key) {
		case Added:
			e.stats.WritersAdded++
		case AlreadyMember:
			e.stats.DuplicateAdds++
		case InvalidKey:
			e.stats.InvalidAdds++
		}
		// The mutation result never suppresses the entry: the view is an
		// audit log of intent, a failed add still shows up in history.
	}

	e.view.append(msg)
	e.stats.Applied++
	return true
}
