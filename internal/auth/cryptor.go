// Package auth implements session management, request authentication, and
// credential sealing for latebird.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cryptor seals access secrets at rest using XChaCha20-Poly1305. The random
// 24-byte nonce is prepended to the ciphertext and the whole blob is
// base64-encoded for storage in a TEXT column.
type Cryptor struct {
	key []byte
}

// NewCryptor builds a Cryptor from a hex-encoded 32-byte key.
func NewCryptor(hexKey string) (*Cryptor, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding credential key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("credential key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Cryptor{key: key}, nil
}

// Seal encrypts plaintext and returns a storable string.
func (c *Cryptor) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("initializing cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a string produced by Seal.
func (c *Cryptor) Open(ciphertext string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding sealed secret: %w", err)
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("initializing cipher: %w", err)
	}
	if len(blob) < aead.NonceSize() {
		return "", fmt.Errorf("sealed secret too short")
	}

	nonce, sealed := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("opening sealed secret: %w", err)
	}
	return string(plaintext), nil
}
