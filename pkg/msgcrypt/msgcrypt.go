// Package msgcrypt encrypts chat messages at rest. Each message is sealed
// independently with a fresh random nonce so decryption is self-contained;
// the stored form is base64(nonce):base64(ciphertext).
package msgcrypt

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecryptionFailed indicates stored ciphertext could not be opened with the
// configured key. Callers must treat the message as corrupted and never
// surface the raw stored value.
var ErrDecryptionFailed = errors.New("message decryption failed")

// Cipher seals and opens chat message bodies with a server-held symmetric key.
type Cipher struct {
	key []byte
}

// New validates the key and returns a message cipher.
func New(key []byte) (*Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("cipher key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}

	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)

	return &Cipher{key: keyCopy}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(nonce) + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a stored nonce:ciphertext value. Any malformed or tampered
// input yields ErrDecryptionFailed.
func (c *Cipher) Decrypt(stored string) (string, error) {
	parts := strings.SplitN(stored, ":", 2)
	if len(parts) != 2 {
		return "", ErrDecryptionFailed
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrDecryptionFailed
	}

	sealed, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrDecryptionFailed
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}

	if len(nonce) != aead.NonceSize() {
		return "", ErrDecryptionFailed
	}

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
