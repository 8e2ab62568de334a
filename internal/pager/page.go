// Package pager provides cursor-based backward pagination and live tailing
// over the merged view.
package pager

import (
	"github.com/coveychat/covey/internal/merge"
	"github.com/coveychat/covey/internal/types"
)

// DefaultPageLimit is used when a caller passes a non-positive limit.
const DefaultPageLimit = 50

// Page is one backward page of the view.
type Page struct {
	Messages []types.ViewEntry `json:"messages"`
	Total    uint64            `json:"total"`
	// NextBeforeSeq is the cursor for the next older page, nil once the
	// start of the view is reached.
	NextBeforeSeq *uint64 `json:"next_before_seq"`
}

// PageView returns up to limit entries ending exclusively at beforeSeq, or
// at the current view end when beforeSeq is nil. Walking the cursor to
// exhaustion reproduces the whole view exactly once: concurrent growth only
// appends past the snapshot taken here.
func PageView(view *merge.View, limit int, beforeSeq *uint64) Page {
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	total := view.Len()
	end := total
	if beforeSeq != nil && *beforeSeq < end {
		end = *beforeSeq
	}

	start := uint64(0)
	if end > uint64(limit) {
		start = end - uint64(limit)
	}

	page := Page{
		Messages: view.Slice(start, end),
		Total:    total,
	}
	if start > 0 {
		cursor := start
		page.NextBeforeSeq = &cursor
	}
	return page
}
