package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values written by AESSealer. Values without it are returned unchanged
// by Open so notes stored before a key was configured stay readable.
const sealedPrefix = "gcm1:"

// ErrKeyLength is returned for keys that are not 32 bytes
var ErrKeyLength = errors.New("notes key must be 32 bytes for AES-256")

// Sealer protects free-text dose notes at rest
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

// NoopSealer stores notes as plain text
type NoopSealer struct{}

func (NoopSealer) Seal(plaintext string) (string, error) { return plaintext, nil }
func (NoopSealer) Open(stored string) (string, error)    { return stored, nil }

// AESSealer seals notes with AES-256-GCM
type AESSealer struct {
	aead cipher.AEAD
}

// NewAESSealer creates a sealer from a 32-byte key
func NewAESSealer(key []byte) (*AESSealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w, got %d bytes", ErrKeyLength, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESSealer{aead: gcm}, nil
}

// NewSealer returns an AESSealer for a base64 encoded key, or a NoopSealer when the key is empty
func NewSealer(encodedKey string) (Sealer, error) {
	if encodedKey == "" {
		return NoopSealer{}, nil
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode notes key: %w", err)
	}
	return NewAESSealer(key)
}

// Seal encrypts plaintext. Empty input stays empty.
func (s *AESSealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal
func (s *AESSealer) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed notes: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("sealed notes too short")
	}

	plaintext, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to open sealed notes: %w", err)
	}
	return string(plaintext), nil
}

var (
	_ Sealer = NoopSealer{}
	_ Sealer = (*AESSealer)(nil)
)
