// Package projection derives room state by replaying the merged view.
// Every projection is a pure fold: identical views always produce identical
// state, and nothing here is ever persisted as the source of truth.
package projection

import (
	"github.com/coveychat/covey/internal/types"
)

type editState struct {
	seq  uint64
	ts   int64
	text string
}

type reactionState struct {
	seq    uint64
	ts     int64
	active bool
}

type pinKey struct {
	channel string
	message string
}

// State accumulates every projection over a prefix of the view. Feed it
// entries in seq order with Apply, or fold a whole view with Reduce.
type State struct {
	applied uint64

	owner         string
	ownerExplicit bool
	roomName      string
	profile       string
	admins        map[string]bool

	channels     map[string]types.Channel
	channelOrder []string

	roomBans  map[string]bool
	roomKicks map[string]bool
	// channel id -> banned key set
	channelBans map[string]map[string]bool

	emoji map[string]bool

	pins     map[pinKey]bool
	pinOrder []pinKey

	edits map[string]editState
	// message id -> emoji -> sender -> latest reaction
	reactions map[string]map[string]map[string]reactionState

	// call id -> channel id, cleared on call-end
	activeCalls map[string]string
}

// NewState creates an empty accumulator.
func NewState() *State {
	return &State{
		admins:      make(map[string]bool),
		channels:    make(map[string]types.Channel),
		roomBans:    make(map[string]bool),
		roomKicks:   make(map[string]bool),
		channelBans: make(map[string]map[string]bool),
		emoji:       make(map[string]bool),
		pins:        make(map[pinKey]bool),
		edits:       make(map[string]editState),
		reactions:   make(map[string]map[string]map[string]reactionState),
		activeCalls: make(map[string]string),
	}
}

// Reduce folds a full view into a fresh state.
func Reduce(entries []types.ViewEntry) *State {
	s := NewState()
	for _, entry := range entries {
		s.Apply(entry)
	}
	return s
}

// Applied returns the number of entries folded so far. A cached state is
// valid for exactly the view prefix of this length.
func (s *State) Applied() uint64 { return s.applied }

// Apply folds one view entry into the state. Unknown kinds and actions are
// skipped; Apply never fails.
func (s *State) Apply(entry types.ViewEntry) {
	msg := entry.Message

	// Ownership bootstraps to the very first message's sender until an
	// explicit owner-set entry appears.
	if s.applied == 0 && !s.ownerExplicit {
		s.owner = msg.Sender
	}
	s.applied++

	switch msg.Kind {
	case types.KindText, types.KindFile:
		// Plain content; nothing beyond the owner bootstrap above.
	case types.KindReaction:
		s.applyReaction(entry.Seq, msg)
	case types.KindCall:
		// Per-frame signaling carries no room state.
	case types.KindSystem:
		s.applySystem(entry.Seq, msg)
	default:
		// Unknown kind: skip, never fail.
	}
}

func (s *State) applySystem(seq uint64, msg types.Message) {
	data := msg.Data
	if data == nil {
		data = &types.SystemData{}
	}

	switch msg.Action {
	case types.ActionAddWriter:
		// Membership lives in the writer set; the entry stays visible in
		// history but projects nothing.
	case types.ActionRoomRename:
		if data.Name != nil {
			s.roomName = *data.Name
		}
	case types.ActionOwnerSet:
		if data.OwnerKey != nil {
			s.owner = *data.OwnerKey
			s.ownerExplicit = true
		}
	case types.ActionAdminsUpdate:
		// Last admins-update wins wholesale.
		s.admins = make(map[string]bool, len(data.Admins))
		for _, key := range data.Admins {
			s.admins[key] = true
		}
	case types.ActionServerProfile:
		if data.Profile != nil {
			s.profile = *data.Profile
		}
	case types.ActionRoomBan:
		if data.TargetKey != nil {
			s.roomBans[*data.TargetKey] = true
		}
	case types.ActionRoomUnban:
		if data.TargetKey != nil {
			delete(s.roomBans, *data.TargetKey)
		}
	case types.ActionRoomKick:
		if data.TargetKey != nil {
			s.roomKicks[*data.TargetKey] = true
		}
	case types.ActionRoomUnkick:
		if data.TargetKey != nil {
			delete(s.roomKicks, *data.TargetKey)
		}
	case types.ActionChannelBan:
		if data.ChannelID != nil && data.TargetKey != nil {
			bans := s.channelBans[*data.ChannelID]
			if bans == nil {
				bans = make(map[string]bool)
				s.channelBans[*data.ChannelID] = bans
			}
			bans[*data.TargetKey] = true
		}
	case types.ActionChannelUnban:
		if data.ChannelID != nil && data.TargetKey != nil {
			delete(s.channelBans[*data.ChannelID], *data.TargetKey)
		}
	case types.ActionChannelAdd, types.ActionChannelUpdate:
		if data.Channel != nil && data.Channel.ID != "" {
			if _, seen := s.channels[data.Channel.ID]; !seen {
				s.channelOrder = append(s.channelOrder, data.Channel.ID)
			}
			s.channels[data.Channel.ID] = *data.Channel
		}
	case types.ActionEmojiAdd:
		if data.Emoji != nil {
			s.emoji[*data.Emoji] = true
		}
	case types.ActionEmojiRemove:
		if data.Emoji != nil {
			delete(s.emoji, *data.Emoji)
		}
	case types.ActionMessagePin:
		if data.ChannelID != nil && data.MessageID != nil {
			key := pinKey{channel: *data.ChannelID, message: *data.MessageID}
			if !s.pins[key] {
				s.pins[key] = true
				s.pinOrder = append(s.pinOrder, key)
			}
		}
	case types.ActionMessageUnpin:
		if data.ChannelID != nil && data.MessageID != nil {
			delete(s.pins, pinKey{channel: *data.ChannelID, message: *data.MessageID})
		}
	case types.ActionMessageEdit:
		if data.MessageID != nil && data.Text != nil {
			cur, ok := s.edits[*data.MessageID]
			if !ok || newer(seq, msg.TS, cur.seq, cur.ts) {
				s.edits[*data.MessageID] = editState{seq: seq, ts: msg.TS, text: *data.Text}
			}
		}
	case types.ActionCallStart:
		if data.CallID != nil {
			channel := ""
			if data.ChannelID != nil {
				channel = *data.ChannelID
			}
			s.activeCalls[*data.CallID] = channel
		}
	case types.ActionCallEnd:
		if data.CallID != nil {
			delete(s.activeCalls, *data.CallID)
		}
	default:
		// Unknown action: skip, never fail.
	}
}

func (s *State) applyReaction(seq uint64, msg types.Message) {
	byEmoji := s.reactions[msg.MessageID]
	if byEmoji == nil {
		byEmoji = make(map[string]map[string]reactionState)
		s.reactions[msg.MessageID] = byEmoji
	}
	bySender := byEmoji[msg.Emoji]
	if bySender == nil {
		bySender = make(map[string]reactionState)
		byEmoji[msg.Emoji] = bySender
	}
	cur, ok := bySender[msg.Sender]
	if !ok || newer(seq, msg.TS, cur.seq, cur.ts) {
		bySender[msg.Sender] = reactionState{seq: seq, ts: msg.TS, active: !msg.Remove}
	}
}

// newer resolves per-key latest-wins. Seq order is authoritative; the
// timestamp comparison only matters when folding a partial page, where seqs
// from different snapshots can collide. A full-view fold never reaches the
// fallback.
func newer(seq uint64, ts int64, curSeq uint64, curTS int64) bool {
	if seq != curSeq {
		return seq > curSeq
	}
	return ts > curTS
}
