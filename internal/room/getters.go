package room

import (
	"github.com/coveychat/covey/internal/projection"
	"github.com/coveychat/covey/internal/types"
)

// State exports the full derived room state snapshot.
func (r *Room) State() (projection.RoomState, error) {
	if !r.ready.Load() {
		return projection.RoomState{}, ErrNotReady
	}
	var out projection.RoomState
	r.withState(func(s *projection.State) { out = s.Export() })
	return out, nil
}

// Owner returns the room owner's writer key.
func (r *Room) Owner() (string, error) {
	if !r.ready.Load() {
		return "", ErrNotReady
	}
	var out string
	r.withState(func(s *projection.State) { out = s.Owner() })
	return out, nil
}

// Admins returns the current admin keys, sorted.
func (r *Room) Admins() ([]string, error) {
	if !r.ready.Load() {
		return nil, ErrNotReady
	}
	var out []string
	r.withState(func(s *projection.State) { out = s.Admins() })
	return out, nil
}

// IsBanned reports whether the key is room-banned.
func (r *Room) IsBanned(key string) (bool, error) {
	if !r.ready.Load() {
		return false, ErrNotReady
	}
	var out bool
	r.withState(func(s *projection.State) { out = s.IsBanned(key) })
	return out, nil
}

// Channels returns the channel catalog in first-seen order.
func (r *Room) Channels() ([]types.Channel, error) {
	if !r.ready.Load() {
		return nil, ErrNotReady
	}
	var out []types.Channel
	r.withState(func(s *projection.State) { out = s.Channels() })
	return out, nil
}

// PinnedIn returns the pinned message ids for a channel.
func (r *Room) PinnedIn(channelID string) ([]string, error) {
	if !r.ready.Load() {
		return nil, ErrNotReady
	}
	var out []string
	r.withState(func(s *projection.State) { out = s.PinnedIn(channelID) })
	return out, nil
}

// ReactionsOn returns the active reactors per emoji for a message.
func (r *Room) ReactionsOn(messageID string) (map[string][]string, error) {
	if !r.ready.Load() {
		return nil, ErrNotReady
	}
	var out map[string][]string
	r.withState(func(s *projection.State) { out = s.ReactionsOn(messageID) })
	return out, nil
}

// CurrentTextOf returns the latest edited text for a message; ok is false
// when it was never edited.
func (r *Room) CurrentTextOf(messageID string) (string, bool, error) {
	if !r.ready.Load() {
		return "", false, ErrNotReady
	}
	var (
		text string
		ok   bool
	)
	r.withState(func(s *projection.State) { text, ok = s.CurrentTextOf(messageID) })
	return text, ok, nil
}

// RoomName returns the current room name.
func (r *Room) RoomName() (string, error) {
	if !r.ready.Load() {
		return "", ErrNotReady
	}
	var out string
	r.withState(func(s *projection.State) { out = s.RoomName() })
	return out, nil
}

// ActiveCalls returns the call sessions currently open, mapped to their
// channel.
func (r *Room) ActiveCalls() (map[string]string, error) {
	if !r.ready.Load() {
		return nil, ErrNotReady
	}
	var out map[string]string
	r.withState(func(s *projection.State) { out = s.ActiveCalls() })
	return out, nil
}

// CanPost is the caller-side authorization check run before Append.
func (r *Room) CanPost(sender, channelID string) (bool, error) {
	if !r.ready.Load() {
		return false, ErrNotReady
	}
	var out bool
	r.withState(func(s *projection.State) { out = s.CanPost(sender, channelID) })
	return out, nil
}
