package merge

import (
	"sync"

	"github.com/coveychat/covey/internal/types"
)

// View is the single linearized timeline of decoded messages. It is
// append-only: a seq, once assigned, never changes value. Readers may hold a
// previously observed length and index below it concurrently with a merge.
type View struct {
	mu      sync.RWMutex
	entries []types.ViewEntry
}

// NewView creates an empty view.
func NewView() *View {
	return &View{}
}

// Len returns the current number of entries.
func (v *View) Len() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return uint64(len(v.entries))
}

// Get returns the entry at seq.
func (v *View) Get(seq uint64) (types.ViewEntry, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if seq >= uint64(len(v.entries)) {
		return types.ViewEntry{}, false
	}
	return v.entries[seq], true
}

// Slice returns a copy of entries in [from, to). Bounds are clamped to the
// current length.
func (v *View) Slice(from, to uint64) []types.ViewEntry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n := uint64(len(v.entries))
	if to > n {
		to = n
	}
	if from >= to {
		return nil
	}
	out := make([]types.ViewEntry, to-from)
	copy(out, v.entries[from:to])
	return out
}

// Snapshot returns a copy of the full view.
func (v *View) Snapshot() []types.ViewEntry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]types.ViewEntry, len(v.entries))
	copy(out, v.entries)
	return out
}

// append assigns the next seq and stores the message. Only the merge engine
// calls this.
func (v *View) append(msg types.Message) types.ViewEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	entry := types.ViewEntry{Seq: uint64(len(v.entries)), Message: msg}
	v.entries = append(v.entries, entry)
	return entry
}
