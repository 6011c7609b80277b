package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const keySize = 32

// Vault seals and opens small secrets (platform session blobs) with an
// authenticated symmetric cipher. The key is supplied out of band as a
// base64-encoded 32-byte value.
type Vault struct {
	key [keySize]byte
}

func NewVault(encodedKey string) (*Vault, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode session key: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("session key must be %d bytes, got %d", keySize, len(raw))
	}

	v := &Vault{}
	copy(v.key[:], raw)
	return v, nil
}

// GenerateKey returns a fresh base64-encoded key suitable for NewVault.
func GenerateKey() (string, error) {
	raw := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("failed to generate session key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Seal encrypts plaintext with a random nonce prepended to the box.
func (v *Vault) Seal(plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &v.key), nil
}

// Open decrypts a blob produced by Seal.
func (v *Vault) Open(blob []byte) ([]byte, error) {
	if len(blob) < 24 {
		return nil, fmt.Errorf("sealed blob too short")
	}
	var nonce [24]byte
	copy(nonce[:], blob[:24])

	plaintext, ok := secretbox.Open(nil, blob[24:], &nonce, &v.key)
	if !ok {
		return nil, fmt.Errorf("failed to open sealed blob: wrong key or corrupted data")
	}
	return plaintext, nil
}
