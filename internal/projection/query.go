package projection

import (
	"sort"

	"github.com/coveychat/covey/internal/types"
)

// Owner returns the room owner's key.
func (s *State) Owner() string { return s.owner }

// RoomName returns the current room name, empty if never set.
func (s *State) RoomName() string { return s.roomName }

// Profile returns the current server profile blob, empty if never set.
func (s *State) Profile() string { return s.profile }

// Admins returns the current admin keys, sorted.
func (s *State) Admins() []string {
	keys := make([]string, 0, len(s.admins))
	for key := range s.admins {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// IsAdmin reports whether the key is the owner or in the admin set.
func (s *State) IsAdmin(key string) bool {
	return key == s.owner || s.admins[key]
}

// IsBanned reports whether the key is room-banned.
func (s *State) IsBanned(key string) bool { return s.roomBans[key] }

// IsKicked reports whether the key is room-kicked.
func (s *State) IsKicked(key string) bool { return s.roomKicks[key] }

// IsBannedIn reports whether the key is banned in the given channel, either
// channel-specifically or room-wide.
func (s *State) IsBannedIn(channelID, key string) bool {
	if s.roomBans[key] {
		return true
	}
	return s.channelBans[channelID][key]
}

// Channels returns the channel catalog in first-seen order.
func (s *State) Channels() []types.Channel {
	out := make([]types.Channel, 0, len(s.channelOrder))
	for _, id := range s.channelOrder {
		out = append(out, s.channels[id])
	}
	return out
}

// Channel returns the catalog entry for the given id.
func (s *State) Channel(id string) (types.Channel, bool) {
	ch, ok := s.channels[id]
	return ch, ok
}

// HasEmoji reports whether a custom emoji name is currently in the catalog.
func (s *State) HasEmoji(name string) bool { return s.emoji[name] }

// PinnedIn returns the pinned message ids for a channel in pin order.
func (s *State) PinnedIn(channelID string) []string {
	var out []string
	for _, key := range s.pinOrder {
		if key.channel == channelID && s.pins[key] {
			out = append(out, key.message)
		}
	}
	return out
}

// CurrentTextOf returns the latest edited text for a message. The second
// return is false when the message was never edited; callers fall back to
// the original body.
func (s *State) CurrentTextOf(messageID string) (string, bool) {
	edit, ok := s.edits[messageID]
	if !ok {
		return "", false
	}
	return edit.text, true
}

// ReactionsOn returns the active reactor keys per emoji for a message,
// reactors sorted within each emoji.
func (s *State) ReactionsOn(messageID string) map[string][]string {
	byEmoji := s.reactions[messageID]
	if len(byEmoji) == 0 {
		return nil
	}
	out := make(map[string][]string)
	for emoji, bySender := range byEmoji {
		var reactors []string
		for sender, state := range bySender {
			if state.active {
				reactors = append(reactors, sender)
			}
		}
		if len(reactors) == 0 {
			continue
		}
		sort.Strings(reactors)
		out[emoji] = reactors
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ActiveCalls returns call ids mapped to their channel.
func (s *State) ActiveCalls() map[string]string {
	out := make(map[string]string, len(s.activeCalls))
	for id, channel := range s.activeCalls {
		out[id] = channel
	}
	return out
}

// CanPost is the caller-side authorization check: the merge engine never
// enforces this, it only exposes the state needed to enforce it before an
// append.
func (s *State) CanPost(sender, channelID string) bool {
	if s.roomBans[sender] || s.roomKicks[sender] {
		return false
	}
	if channelID == "" {
		return true
	}
	if s.channelBans[channelID][sender] {
		return false
	}
	if ch, ok := s.channels[channelID]; ok && ch.ModOnly {
		return s.IsAdmin(sender)
	}
	return true
}
