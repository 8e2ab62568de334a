// Package invite encodes room public keys as shareable textual identifiers.
// The identifier is not secret: it frames the key under a URI prefix with a
// deterministic padding block so malformed or truncated links are rejected
// early.
package invite

import (
	"bytes"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Prefix is the URI-style scheme in front of every invite.
const Prefix = "covey://"

// padDomain separates the invite padding derivation from other key uses.
const padDomain = "covey/invite/v1"

const (
	keyLen = 32
	padLen = 8
)

// z-base-32: fixed, human-friendly, case-insensitive-safe alphabet.
const alphabet = "ybndrfg8ejkmcpqxot1uwisza345h769"

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// ErrInvalidInvite is returned for anything that does not parse back to a
// well-formed room key.
var ErrInvalidInvite = errors.New("invalid invite")

// Encode renders a 32-byte room public key as an invite string.
func Encode(roomKey []byte) (string, error) {
	if len(roomKey) != keyLen {
		return "", fmt.Errorf("room key must be %d bytes, got %d", keyLen, len(roomKey))
	}
	block := make([]byte, 0, keyLen+padLen)
	block = append(block, roomKey...)
	block = append(block, pad(roomKey)...)
	return Prefix + encoding.EncodeToString(block), nil
}

// Parse extracts and validates the room public key from an invite string.
func Parse(s string) ([]byte, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(s), Prefix)
	if !ok {
		return nil, ErrInvalidInvite
	}
	block, err := encoding.DecodeString(body)
	if err != nil || len(block) != keyLen+padLen {
		return nil, ErrInvalidInvite
	}
	roomKey := block[:keyLen]
	if !bytes.Equal(block[keyLen:], pad(roomKey)) {
		return nil, ErrInvalidInvite
	}
	out := make([]byte, keyLen)
	copy(out, roomKey)
	return out, nil
}

// pad derives the deterministic padding block from the key itself.
func pad(roomKey []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(padDomain))
	h.Write(roomKey)
	sum := h.Sum(nil)
	return sum[:padLen]
}
