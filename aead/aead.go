// Package aead implements the core's sole authenticated cipher:
// AES-256-GCM with a 12-byte nonce and 16-byte tag.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/jpfluger/encyphrix/kdf"
	"github.com/jpfluger/encyphrix/xerr"
)

// NonceSize is the fixed GCM nonce length used throughout the core.
const NonceSize = 12

// TagSize is the fixed GCM authentication tag length.
const TagSize = 16

// NewNonce returns a fresh CSPRNG nonce. Every Seal call must use a
// distinct nonce for a given key; callers generate one per record.
func NewNonce() ([NonceSize]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nonce, xerr.Wrap(xerr.KindInvalidInput, err, "aead: failed to generate nonce")
	}
	return nonce, nil
}

func newGCM(key kdf.Key32) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, xerr.Wrap(xerr.KindInvalidInput, err, "aead: failed to construct AES cipher")
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindInvalidInput, err, "aead: failed to construct GCM")
	}
	return gcm, nil
}

// Seal encrypts plaintext under key, authenticating aad, and returns
// ciphertext||tag. nonce must be freshly random and never reused with
// the same key.
func Seal(key kdf.Key32, nonce [NonceSize]byte, aad, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, nonce[:], plaintext, aad), nil
}

// Open authenticates and decrypts ciphertext||tag under key and aad.
// On any tag mismatch it returns xerr.KindDecryptFailed without
// leaking partial plaintext — the returned slice is nil on failure.
func Open(key kdf.Key32, nonce [NonceSize]byte, aad, ciphertextAndTag []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce[:], ciphertextAndTag, aad)
	if err != nil {
		return nil, xerr.New(xerr.KindDecryptFailed, "aead: authentication failed")
	}
	return plaintext, nil
}
