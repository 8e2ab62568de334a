package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptedKeyFile is the passphrase-protected on-disk key format.
type EncryptedKeyFile struct {
	Version    int       `json:"version"`
	Algorithm  string    `json:"algorithm"`
	KDF        string    `json:"kdf"`
	KDFParams  KDFParams `json:"kdf_params"`
	Public     string    `json:"public"`
	Nonce      string    `json:"nonce"`
	Ciphertext string    `json:"ciphertext"`
}

// KDFParams holds Argon2id parameters.
type KDFParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"`
	Threads uint8  `json:"threads"`
	Salt    string `json:"salt"` // base64-encoded
}

// DefaultKDFParams returns the Argon2id parameters used for new key files.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Time:    3,
		Memory:  65536, // 64MB
		Threads: 4,
	}
}

// SaveEncrypted writes the identity to path, private key sealed under the
// passphrase with XChaCha20-Poly1305.
func (id *Identity) SaveEncrypted(path string, passphrase []byte) error {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	params := DefaultKDFParams()
	params.Salt = base64.StdEncoding.EncodeToString(salt)
	derived := argon2.IDKey(passphrase, salt, params.Time, params.Memory, params.Threads, 32)

	aead, err := chacha20poly1305.NewX(derived)
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, []byte(id.Private), nil)

	ekf := EncryptedKeyFile{
		Version:    1,
		Algorithm:  "xchacha20-poly1305",
		KDF:        "argon2id",
		KDFParams:  params,
		Public:     id.Key(),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(ekf, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// LoadOrGenerateEncrypted loads the sealed identity at path, generating and
// saving a new one under the passphrase when the file does not exist yet.
func LoadOrGenerateEncrypted(path string, passphrase []byte) (*Identity, error) {
	id, err := LoadEncrypted(path, passphrase)
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
	if err := id.SaveEncrypted(path, passphrase); err != nil {
		return nil, err
	}
	return id, nil
}

// LoadEncrypted reads and unseals an encrypted identity file.
func LoadEncrypted(path string, passphrase []byte) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ekf EncryptedKeyFile
	if err := json.Unmarshal(data, &ekf); err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}
	if ekf.Version != 1 {
		return nil, fmt.Errorf("unsupported key file version: %d", ekf.Version)
	}
	if ekf.Algorithm != "xchacha20-poly1305" {
		return nil, fmt.Errorf("unsupported algorithm: %s", ekf.Algorithm)
	}
	if ekf.KDF != "argon2id" {
		return nil, fmt.Errorf("unsupported KDF: %s", ekf.KDF)
	}

	salt, err := base64.StdEncoding.DecodeString(ekf.KDFParams.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	derived := argon2.IDKey(passphrase, salt, ekf.KDFParams.Time, ekf.KDFParams.Memory, ekf.KDFParams.Threads, 32)

	aead, err := chacha20poly1305.NewX(derived)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(ekf.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ekf.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w (wrong passphrase?)", err)
	}
	if len(plaintext) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key")
	}

	priv := ed25519.PrivateKey(plaintext)
	return &Identity{
		Public:  priv.Public().(ed25519.PublicKey),
		Private: priv,
	}, nil
}
