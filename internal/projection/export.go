package projection

import (
	"sort"

	"github.com/coveychat/covey/internal/types"
)

// RoomState is the serializable snapshot of every projection. It is derived,
// never authoritative: any copy must be reproducible from the view alone.
type RoomState struct {
	Applied     uint64                         `json:"applied"`
	Owner       string                         `json:"owner"`
	RoomName    string                         `json:"room_name,omitempty"`
	Profile     string                         `json:"profile,omitempty"`
	Admins      []string                       `json:"admins,omitempty"`
	Channels    []types.Channel                `json:"channels,omitempty"`
	RoomBans    []string                       `json:"room_bans,omitempty"`
	RoomKicks   []string                       `json:"room_kicks,omitempty"`
	ChannelBans map[string][]string            `json:"channel_bans,omitempty"`
	Emoji       []string                       `json:"emoji,omitempty"`
	Pins        map[string][]string            `json:"pins,omitempty"`
	Edits       map[string]string              `json:"edits,omitempty"`
	Reactions   map[string]map[string][]string `json:"reactions,omitempty"`
	ActiveCalls map[string]string              `json:"active_calls,omitempty"`
}

// Export snapshots the accumulator into a RoomState.
func (s *State) Export() RoomState {
	out := RoomState{
		Applied:  s.applied,
		Owner:    s.owner,
		RoomName: s.roomName,
		Profile:  s.profile,
		Admins:   s.Admins(),
		Channels: s.Channels(),
	}

	out.RoomBans = sortedKeys(s.roomBans)
	out.RoomKicks = sortedKeys(s.roomKicks)
	out.Emoji = sortedKeys(s.emoji)

	if len(s.channelBans) > 0 {
		out.ChannelBans = make(map[string][]string)
		for channel, bans := range s.channelBans {
			if keys := sortedKeys(bans); len(keys) > 0 {
				out.ChannelBans[channel] = keys
			}
		}
		if len(out.ChannelBans) == 0 {
			out.ChannelBans = nil
		}
	}

	if len(s.pinOrder) > 0 {
		out.Pins = make(map[string][]string)
		for _, key := range s.pinOrder {
			if s.pins[key] {
				out.Pins[key.channel] = append(out.Pins[key.channel], key.message)
			}
		}
		if len(out.Pins) == 0 {
			out.Pins = nil
		}
	}

	if len(s.edits) > 0 {
		out.Edits = make(map[string]string, len(s.edits))
		for id, edit := range s.edits {
			out.Edits[id] = edit.text
		}
	}

	for id := range s.reactions {
		if reactions := s.ReactionsOn(id); reactions != nil {
			if out.Reactions == nil {
				out.Reactions = make(map[string]map[string][]string)
			}
			out.Reactions[id] = reactions
		}
	}

	if len(s.activeCalls) > 0 {
		out.ActiveCalls = s.ActiveCalls()
	}

	return out
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
