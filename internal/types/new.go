package types

import "github.com/google/uuid"

// NewText builds a text message. The caller supplies the timestamp so that
// replaying identical inputs stays deterministic.
func NewText(sender, senderName, body string, channelID *string, ts int64) (Message, error) {
	id, err := NewMessageID()
	if err != nil {
		return Message{}, err
	}
	return Message{
		Kind:       KindText,
		ID:         id,
		TS:         ts,
		Sender:     sender,
		SenderName: senderName,
		Body:       body,
		ChannelID:  channelID,
	}, nil
}

// NewSystem builds a system message for the given action.
func NewSystem(sender string, action SystemAction, data SystemData, ts int64) (Message, error) {
	id, err := NewMessageID()
	if err != nil {
		return Message{}, err
	}
	return Message{
		Kind:   KindSystem,
		ID:     id,
		TS:     ts,
		Sender: sender,
		Action: action,
		Data:   &data,
	}, nil
}

// NewAddWriter builds the membership mutation message admitting writerKey.
func NewAddWriter(sender, writerKey string, ts int64) (Message, error) {
	return NewSystem(sender, ActionAddWriter, SystemData{WriterKey: &writerKey}, ts)
}

// NewReaction builds a reaction set/unset message.
func NewReaction(sender, messageID, emoji string, remove bool, ts int64) (Message, error) {
	id, err := NewMessageID()
	if err != nil {
		return Message{}, err
	}
	return Message{
		Kind:      KindReaction,
		ID:        id,
		TS:        ts,
		Sender:    sender,
		MessageID: messageID,
		Emoji:     emoji,
		Remove:    remove,
	}, nil
}

// NewCallStart builds a call-start system message with a fresh session id.
func NewCallStart(sender string, channelID string, ts int64) (Message, error) {
	callID := uuid.NewString()
	return NewSystem(sender, ActionCallStart, SystemData{
		CallID:    &callID,
		ChannelID: &channelID,
	}, ts)
}

// NewCallEnd builds the call-end system message closing a session.
func NewCallEnd(sender, callID string, ts int64) (Message, error) {
	return NewSystem(sender, ActionCallEnd, SystemData{CallID: &callID}, ts)
}
