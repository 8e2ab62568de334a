// Package envelope seals and opens message payloads for the per-writer logs.
//
// The symmetric key is derived deterministically from the room's public key,
// so every holder of the room identifier can open envelopes without a key
// exchange. Membership mutations (add-writer) travel in the clear: the merge
// engine has to read them before room keys are bootstrapped.
package envelope

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/coveychat/covey/internal/types"
)

// keyDomain separates the room message key from other uses of the room key.
const keyDomain = "covey/envelope/v1"

const (
	recordOpen   = "open"
	recordSealed = "sealed"
)

// record is the outer wire form of one log entry.
type record struct {
	Type       string         `json:"type"`
	Message    *types.Message `json:"message,omitempty"`
	Nonce      string         `json:"nonce,omitempty"`
	Ciphertext string         `json:"ciphertext,omitempty"`
}

// Codec seals and opens envelopes for one room.
type Codec struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// DeriveKey derives the room's symmetric message key from its public key.
func DeriveKey(roomKey []byte) [32]byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(keyDomain))
	h.Write(roomKey)
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// NewCodec creates a codec keyed from the room's public key.
func NewCodec(roomKey []byte) (*Codec, error) {
	key := DeriveKey(roomKey)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt encodes a message into its log entry form. Add-writer system
// messages are written as open records; everything else is sealed.
func (c *Codec) Encrypt(msg types.Message) ([]byte, error) {
	if msg.Kind == types.KindSystem && msg.Action == types.ActionAddWriter {
		return json.Marshal(record{Type: recordOpen, Message: &msg})
	}

	plaintext, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := c.aead.Seal(nil, nonce, plaintext, nil)

	return json.Marshal(record{
		Type:       recordSealed,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	})
}

// Decrypt decodes a raw log entry back into a message. It reports false for
// anything malformed or undecryptable; the merge drops those silently.
func (c *Codec) Decrypt(raw []byte) (types.Message, bool) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return types.Message{}, false
	}

	switch rec.Type {
	case recordOpen:
		// Only the membership mutation may travel unsealed.
		if rec.Message == nil || rec.Message.Kind != types.KindSystem || rec.Message.Action != types.ActionAddWriter {
			return types.Message{}, false
		}
		return *rec.Message, true
	case recordSealed:
		nonce, err := base64.StdEncoding.DecodeString(rec.Nonce)
		if err != nil || len(nonce) != c.aead.NonceSize() {
			return types.Message{}, false
		}
		ciphertext, err := base64.StdEncoding.DecodeString(rec.Ciphertext)
		if err != nil {
			return types.Message{}, false
		}
		plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return types.Message{}, false
		}
		var msg types.Message
		if err := json.Unmarshal(plaintext, &msg); err != nil {
			return types.Message{}, false
		}
		return msg, true
	default:
		return types.Message{}, false
	}
}
