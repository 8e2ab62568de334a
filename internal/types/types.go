package types

// MessageKind discriminates the message union on the wire.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindFile     MessageKind = "file"
	KindSystem   MessageKind = "system"
	KindReaction MessageKind = "reaction"
	KindCall     MessageKind = "call"
)

// SystemAction is the fixed vocabulary of system message actions.
type SystemAction string

const (
	ActionAddWriter     SystemAction = "add-writer"
	ActionRoomRename    SystemAction = "room-rename"
	ActionOwnerSet      SystemAction = "owner-set"
	ActionAdminsUpdate  SystemAction = "admins-update"
	ActionServerProfile SystemAction = "server-profile"
	ActionRoomBan       SystemAction = "room-ban"
	ActionRoomUnban     SystemAction = "room-unban"
	ActionRoomKick      SystemAction = "room-kick"
	ActionRoomUnkick    SystemAction = "room-unkick"
	ActionChannelBan    SystemAction = "channel-ban"
	ActionChannelUnban  SystemAction = "channel-unban"
	ActionChannelAdd    SystemAction = "channel-add"
	ActionChannelUpdate SystemAction = "channel-update"
	ActionEmojiAdd      SystemAction = "emoji-add"
	ActionEmojiRemove   SystemAction = "emoji-remove"
	ActionMessagePin    SystemAction = "message-pin"
	ActionMessageUnpin  SystemAction = "message-unpin"
	ActionMessageEdit   SystemAction = "message-edit"
	ActionCallStart     SystemAction = "call-start"
	ActionCallEnd       SystemAction = "call-end"
)

// ChannelKind distinguishes text channels from voice channels.
type ChannelKind string

const (
	ChannelText  ChannelKind = "text"
	ChannelVoice ChannelKind = "voice"
)

// Channel describes one entry in the room's channel catalog.
type Channel struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Kind    ChannelKind `json:"kind"`
	ModOnly bool        `json:"mod_only,omitempty"`
}

// SystemData carries the action-specific payload of a system message.
// Fields are pointer-optional; each action reads only the fields it names.
type SystemData struct {
	WriterKey *string  `json:"writer_key,omitempty"`
	Name      *string  `json:"name,omitempty"`
	OwnerKey  *string  `json:"owner_key,omitempty"`
	Admins    []string `json:"admins,omitempty"`
	Profile   *string  `json:"profile,omitempty"`
	TargetKey *string  `json:"target_key,omitempty"`
	ChannelID *string  `json:"channel_id,omitempty"`
	Channel   *Channel `json:"channel,omitempty"`
	MessageID *string  `json:"message_id,omitempty"`
	Text      *string  `json:"text,omitempty"`
	Emoji     *string  `json:"emoji,omitempty"`
	CallID    *string  `json:"call_id,omitempty"`
}

// Message is the decoded wire form of every room event.
// Kind selects which of the optional field groups is meaningful.
type Message struct {
	Kind       MessageKind `json:"type"`
	ID         string      `json:"id"`
	TS         int64       `json:"ts"`
	Sender     string      `json:"sender"`
	SenderName string      `json:"sender_name,omitempty"`

	// text
	Body         string  `json:"body,omitempty"`
	ChannelID    *string `json:"channel_id,omitempty"`
	DMKey        *string `json:"dm_key,omitempty"`
	ThreadRootID *string `json:"thread_root_id,omitempty"`

	// file
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	BlobRef  string `json:"blob_ref,omitempty"`

	// system
	Action SystemAction `json:"action,omitempty"`
	Data   *SystemData  `json:"data,omitempty"`

	// reaction
	MessageID string `json:"message_id,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
	Remove    bool   `json:"remove,omitempty"`

	// call signaling
	CallID  string `json:"call_id,omitempty"`
	Media   string `json:"media,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// ViewEntry is one position in the merged room timeline.
// Seq is dense from zero, assigned once, never reused.
type ViewEntry struct {
	Seq     uint64  `json:"seq"`
	Message Message `json:"message"`
}

// Valid reports whether a decoded message carries the fields the merge
// requires. Invalid messages are skipped, never surfaced as errors.
func (m Message) Valid() bool {
	if m.ID == "" || m.Sender == "" {
		return false
	}
	switch m.Kind {
	case KindText:
		return true
	case KindFile:
		return m.Filename != "" || m.BlobRef != ""
	case KindSystem:
		return m.Action != ""
	case KindReaction:
		return m.MessageID != "" && m.Emoji != ""
	case KindCall:
		return m.CallID != ""
	default:
		return false
	}
}
