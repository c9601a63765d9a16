// Package crypto encrypts and decrypts the sender password stored in the
// permit-watch config file.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	iterations = 100000
	keySize    = 32 // AES-256
)

var (
	// ErrNoPassphrase is returned when an encrypted value is used without a passphrase
	ErrNoPassphrase = errors.New("passphrase is required")

	// ErrDecrypt is returned when a value cannot be decrypted with the given passphrase
	ErrDecrypt = errors.New("decrypting value")
)

// Encryptor handles encryption and decryption of sensitive config values
type Encryptor struct {
	passphrase []byte
}

// NewEncryptor creates a new encryptor with the given passphrase.
// It returns nil for an empty passphrase.
func NewEncryptor(passphrase string) *Encryptor {
	if passphrase == "" {
		return nil
	}
	return &Encryptor{passphrase: []byte(passphrase)}
}

func (e *Encryptor) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(e.passphrase, salt, iterations, keySize, sha256.New)
}

// Encrypt encrypts plaintext with AES-GCM under a PBKDF2-derived key.
// The output is base64(salt | nonce | ciphertext).
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if e == nil {
		return "", ErrNoPassphrase
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	gcm, err := newGCM(e.deriveKey(salt))
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	out := append(salt, nonce...)
	out = gcm.Seal(out, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. A value that does not decrypt under the
// passphrase returns ErrDecrypt.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	if e == nil {
		return "", ErrNoPassphrase
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrDecrypt, err)
	}
	if len(data) < saltSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	salt, rest := data[:saltSize], data[saltSize:]
	gcm, err := newGCM(e.deriveKey(salt))
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, cipherData := rest[:nonceSize], rest[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, cipherData, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
