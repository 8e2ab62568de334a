package room

import (
	"errors"
	"testing"
	"time"

	"github.com/coveychat/covey/internal/identity"
	"github.com/coveychat/covey/internal/types"
)

func testClock() func() int64 {
	var tick int64
	return func() int64 {
		tick++
		return 1700000000000 + tick
	}
}

func createRoom(t *testing.T, dir string) (*Room, *identity.Identity) {
	t.Helper()
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	r, err := Create(Config{Dir: dir, Identity: id, Now: testClock(), TailInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(r.Close)
	return r, id
}

func postText(t *testing.T, r *Room, body string) types.Message {
	t.Helper()
	msg, err := types.NewText(r.WriterKey(), "", body, nil, r.Now())
	if err != nil {
		t.Fatalf("NewText: %v", err)
	}
	if err := r.Append(msg); err != nil {
		t.Fatalf("Append: %v", err)
	}
	return msg
}

func TestCreatePostHistory(t *testing.T) {
	r, id := createRoom(t, t.TempDir())

	postText(t, r, "first")
	postText(t, r, "second")

	entries, err := r.History(0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message.Body != "first" || entries[1].Message.Body != "second" {
		t.Fatalf("history out of order: %q, %q", entries[0].Message.Body, entries[1].Message.Body)
	}
	if entries[0].Seq != 0 || entries[1].Seq != 1 {
		t.Fatalf("seqs not dense from 0: %d, %d", entries[0].Seq, entries[1].Seq)
	}

	owner, err := r.Owner()
	if err != nil {
		t.Fatalf("Owner: %v", err)
	}
	if owner != id.Key() {
		t.Fatalf("owner %s, want creator %s", owner, id.Key())
	}
}

func TestCreatorKeyIsRoomKey(t *testing.T) {
	r, id := createRoom(t, t.TempDir())
	if got := r.WriterKey(); got != id.Key() {
		t.Fatalf("writer key %s, want %s", got, id.Key())
	}
	writers, err := r.Writers()
	if err != nil {
		t.Fatalf("Writers: %v", err)
	}
	if len(writers) != 1 || writers[0] != id.Key() {
		t.Fatalf("writer set %v, want just the creator", writers)
	}
}

func TestSecondWriterNeedsAdmission(t *testing.T) {
	// Both devices operate on the same directory, standing in for a fully
	// replicated pair of log sets.
	dir := t.TempDir()
	creator, _ := createRoom(t, dir)

	guestID, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	guest, err := Open(Config{Dir: dir, Identity: guestID, Now: testClock()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer guest.Close()

	postText(t, creator, "welcome")
	postText(t, guest, "can anyone hear me")

	if _, err := creator.Resync(); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	entries, _ := creator.History(0)
	if len(entries) != 1 {
		t.Fatalf("unadmitted writer's entries leaked into the view: %d", len(entries))
	}

	if err := creator.AddWriter(guestID.Key()); err != nil {
		t.Fatalf("AddWriter: %v", err)
	}

	// The same merge pass that applies the add-writer drains the guest log.
	entries, _ = creator.History(0)
	if len(entries) != 3 {
		t.Fatalf("expected welcome + add-writer + guest message, got %d", len(entries))
	}
	last := entries[len(entries)-1].Message
	if last.Body != "can anyone hear me" {
		t.Fatalf("guest message missing, last entry: %+v", last)
	}

	// The guest's replica converges to the same view.
	if _, err := guest.Resync(); err != nil {
		t.Fatalf("guest Resync: %v", err)
	}
	guestEntries, _ := guest.History(0)
	if len(guestEntries) != len(entries) {
		t.Fatalf("replica length %d, want %d", len(guestEntries), len(entries))
	}
	for i := range entries {
		if guestEntries[i].Message.ID != entries[i].Message.ID {
			t.Fatalf("replica diverged at seq %d", i)
		}
	}
}

func TestDuplicateAddWriterStaysInHistory(t *testing.T) {
	r, id := createRoom(t, t.TempDir())
	if err := r.AddWriter(id.Key()); err != nil {
		t.Fatalf("AddWriter: %v", err)
	}
	entries, _ := r.History(0)
	if len(entries) != 1 {
		t.Fatalf("duplicate add must still be recorded, got %d entries", len(entries))
	}
	writers, _ := r.Writers()
	if len(writers) != 1 {
		t.Fatalf("writer set grew on duplicate add: %v", writers)
	}
}

func TestHistoryPage(t *testing.T) {
	r, _ := createRoom(t, t.TempDir())
	for i := 0; i < 7; i++ {
		postText(t, r, "msg")
	}

	page, err := r.HistoryPage(3, nil)
	if err != nil {
		t.Fatalf("HistoryPage: %v", err)
	}
	if page.Total != 7 || len(page.Messages) != 3 || page.Messages[0].Seq != 4 {
		t.Fatalf("unexpected first page: total=%d len=%d first=%d", page.Total, len(page.Messages), page.Messages[0].Seq)
	}

	walked := 0
	var cursor *uint64
	for {
		p, err := r.HistoryPage(3, cursor)
		if err != nil {
			t.Fatalf("HistoryPage: %v", err)
		}
		walked += len(p.Messages)
		if p.NextBeforeSeq == nil {
			break
		}
		cursor = p.NextBeforeSeq
	}
	if walked != 7 {
		t.Fatalf("cursor walk covered %d entries, want 7", walked)
	}
}

func TestWatchDeliversNewEntries(t *testing.T) {
	r, _ := createRoom(t, t.TempDir())
	postText(t, r, "history, not tail")

	got := make(chan types.ViewEntry, 8)
	unsubscribe, err := r.Watch(func(entry types.ViewEntry) { got <- entry })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer unsubscribe()

	posted := postText(t, r, "live")

	select {
	case entry := <-got:
		if entry.Message.ID != posted.ID {
			t.Fatalf("delivered %s, want %s", entry.Message.ID, posted.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for tail delivery")
	}
}

func TestEditAndReactionProjections(t *testing.T) {
	r, id := createRoom(t, t.TempDir())
	posted := postText(t, r, "hi")

	edit, err := types.NewSystem(id.Key(), types.ActionMessageEdit, types.SystemData{
		MessageID: &posted.ID,
		Text:      strPtr("hello"),
	}, r.Now())
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	if err := r.Append(edit); err != nil {
		t.Fatalf("Append edit: %v", err)
	}

	text, ok, err := r.CurrentTextOf(posted.ID)
	if err != nil || !ok || text != "hello" {
		t.Fatalf("CurrentTextOf = %q, %v, %v", text, ok, err)
	}

	reaction, err := types.NewReaction(id.Key(), posted.ID, "wave", false, r.Now())
	if err != nil {
		t.Fatalf("NewReaction: %v", err)
	}
	if err := r.Append(reaction); err != nil {
		t.Fatalf("Append reaction: %v", err)
	}
	reactions, err := r.ReactionsOn(posted.ID)
	if err != nil {
		t.Fatalf("ReactionsOn: %v", err)
	}
	if len(reactions["wave"]) != 1 || reactions["wave"][0] != id.Key() {
		t.Fatalf("unexpected reactions: %v", reactions)
	}
}

func TestBanBlocksPosting(t *testing.T) {
	r, id := createRoom(t, t.TempDir())
	postText(t, r, "hi")

	target := "feedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeed"
	ban, err := types.NewSystem(id.Key(), types.ActionRoomBan, types.SystemData{TargetKey: &target}, r.Now())
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	if err := r.Append(ban); err != nil {
		t.Fatalf("Append: %v", err)
	}

	banned, err := r.IsBanned(target)
	if err != nil || !banned {
		t.Fatalf("IsBanned = %v, %v", banned, err)
	}
	can, err := r.CanPost(target, "")
	if err != nil || can {
		t.Fatalf("banned writer must not post: %v, %v", can, err)
	}
	can, err = r.CanPost(id.Key(), "")
	if err != nil || !can {
		t.Fatalf("owner must still post: %v, %v", can, err)
	}
}

func TestReopenRebuildsView(t *testing.T) {
	dir := t.TempDir()
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	first, err := Create(Config{Dir: dir, Identity: id, Now: testClock()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	msg, err := types.NewText(id.Key(), "", "durable", nil, first.Now())
	if err != nil {
		t.Fatalf("NewText: %v", err)
	}
	if err := first.Append(msg); err != nil {
		t.Fatalf("Append: %v", err)
	}
	first.Close()

	// Reopen without a room key: it comes from the persisted descriptor.
	second, err := Open(Config{Dir: dir, Identity: id, Now: testClock()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer second.Close()

	entries, err := second.History(0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 || entries[0].Message.Body != "durable" {
		t.Fatalf("reopened view wrong: %+v", entries)
	}
}

func TestDirRefusesDifferentRoom(t *testing.T) {
	dir := t.TempDir()
	createRoom(t, dir)

	other, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := Join(Config{Dir: dir, Identity: other, RoomKey: other.Public, Now: testClock()}); err == nil {
		t.Fatalf("expected refusal to overwrite an existing room descriptor")
	}
}

func TestClosedRoomReturnsErrNotReady(t *testing.T) {
	r, id := createRoom(t, t.TempDir())
	r.Close()

	msg, err := types.NewText(id.Key(), "", "late", nil, 1)
	if err != nil {
		t.Fatalf("NewText: %v", err)
	}
	if err := r.Append(msg); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Append after Close: %v", err)
	}
	if _, err := r.History(0); !errors.Is(err, ErrNotReady) {
		t.Fatalf("History after Close: %v", err)
	}
	if _, err := r.Owner(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Owner after Close: %v", err)
	}
	if _, err := r.Resync(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Resync after Close: %v", err)
	}
}

func TestWatchFilesResyncsOnLogGrowth(t *testing.T) {
	dir := t.TempDir()
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	watched, err := Create(Config{
		Dir:          dir,
		Identity:     id,
		Now:          testClock(),
		TailInterval: 5 * time.Millisecond,
		WatchFiles:   true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer watched.Close()

	got := make(chan types.ViewEntry, 8)
	unsubscribe, err := watched.Watch(func(entry types.ViewEntry) { got <- entry })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer unsubscribe()

	// A second instance writes to the shared log file, as a replication
	// daemon would.
	other, err := Open(Config{Dir: dir, Identity: id, Now: testClock()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer other.Close()
	postText(t, other, "replicated")

	select {
	case entry := <-got:
		if entry.Message.Body != "replicated" {
			t.Fatalf("unexpected delivery: %+v", entry.Message)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("file watcher never triggered a resync")
	}
}

func TestCallLifecycle(t *testing.T) {
	r, _ := createRoom(t, t.TempDir())

	callID, err := r.StartCall("lounge")
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	if callID == "" {
		t.Fatalf("StartCall returned an empty session id")
	}

	calls, err := r.ActiveCalls()
	if err != nil {
		t.Fatalf("ActiveCalls: %v", err)
	}
	if calls[callID] != "lounge" {
		t.Fatalf("active calls %v, want %s in lounge", calls, callID)
	}

	if err := r.EndCall(callID); err != nil {
		t.Fatalf("EndCall: %v", err)
	}
	calls, err = r.ActiveCalls()
	if err != nil {
		t.Fatalf("ActiveCalls: %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("calls still active after end: %v", calls)
	}

	// The session survives the full log round trip.
	entries, err := r.History(0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var starts, ends int
	for _, entry := range entries {
		switch entry.Message.Action {
		case types.ActionCallStart:
			starts++
		case types.ActionCallEnd:
			ends++
		}
	}
	if starts != 1 || ends != 1 {
		t.Fatalf("history has %d starts and %d ends, want 1 each", starts, ends)
	}
}

func TestGettersConcurrentWithAppends(t *testing.T) {
	r, _ := createRoom(t, t.TempDir())
	postText(t, r, "seed")

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 50; i++ {
			msg, err := types.NewText(r.WriterKey(), "", "msg", nil, r.Now())
			if err == nil {
				err = r.Append(msg)
			}
			if err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for {
		if _, err := r.Owner(); err != nil {
			t.Fatalf("Owner: %v", err)
		}
		if _, err := r.State(); err != nil {
			t.Fatalf("State: %v", err)
		}
		if _, err := r.Channels(); err != nil {
			t.Fatalf("Channels: %v", err)
		}
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("append: %v", err)
			}
			return
		default:
		}
	}
}

func strPtr(s string) *string { return &s }
