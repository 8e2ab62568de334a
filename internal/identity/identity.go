// Package identity manages the device keypair that owns this device's
// writer log.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Identity is one device's keypair. The public key doubles as the writer
// log id.
type Identity struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// Generate creates a fresh device identity.
func Generate() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Identity{Public: pub, Private: priv}, nil
}

// Key returns the hex writer key for this identity.
func (id *Identity) Key() string {
	return hex.EncodeToString(id.Public)
}

// Fingerprint returns a sha256:{hex} fingerprint of the public key.
func (id *Identity) Fingerprint() string {
	hash := sha256.Sum256(id.Public)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// keyFile is the plaintext on-disk format. Passphrase-protected storage
// lives in keyfile.go.
type keyFile struct {
	Version int    `json:"version"`
	Public  string `json:"public"`
	Private string `json:"private"`
}

// Save writes the identity to path.
func (id *Identity) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(keyFile{
		Version: 1,
		Public:  hex.EncodeToString(id.Public),
		Private: hex.EncodeToString(id.Private),
	}, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// Load reads an identity from path.
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}
	if kf.Version != 1 {
		return nil, fmt.Errorf("unsupported key file version: %d", kf.Version)
	}
	pub, err := hex.DecodeString(kf.Public)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key")
	}
	priv, err := hex.DecodeString(kf.Private)
	if err != nil || len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key")
	}
	return &Identity{Public: ed25519.PublicKey(pub), Private: ed25519.PrivateKey(priv)}, nil
}

// LoadOrGenerate loads the identity at path, generating and saving a new one
// when the file does not exist yet.
func LoadOrGenerate(path string) (*Identity, error) {
	id, err := Load(path)
	if err == nil {
		return id, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	id, err = Generate()
	if err != nil {
		return nil, err
	}
	if err := id.Save(path); err != nil {
		return nil, err
	}
	return id, nil
}
