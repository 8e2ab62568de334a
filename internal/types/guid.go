package types

import (
	"crypto/rand"
	"fmt"
)

const (
	guidAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	guidLength   = 8
)

// NewGUID creates a short random identifier with the provided prefix.
func NewGUID(prefix string) (string, error) {
	buf := make([]byte, guidLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate guid: %w", err)
	}

	id := make([]byte, guidLength)
	for i := 0; i < guidLength; i++ {
		id[i] = guidAlphabet[int(buf[i])%len(guidAlphabet)]
	}

	return fmt.Sprintf("%s-%s", prefix, string(id)), nil
}

// NewMessageID creates a message identifier.
func NewMessageID() (string, error) {
	return NewGUID("msg")
}

// NewChannelID creates a channel identifier.
func NewChannelID() (string, error) {
	return NewGUID("ch")
}
