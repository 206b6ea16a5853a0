package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"cloakchat/internal/domain"
)

// NonceBytes is the AEAD nonce size: 96 bits, fresh per message.
const NonceBytes = chacha20poly1305.NonceSize

// ErrDecryptionFailed marks a terminal per-message failure: tag mismatch,
// malformed encoding, or the wrong key. It is distinct from "no session
// key yet", which is a transient condition handled by buffering.
var ErrDecryptionFailed = errors.New("decryption failed")

// Encrypt authenticated-encrypts plaintext under key with a fresh random
// nonce and encodes the result as base64(nonce) ":" base64(ciphertext).
// Two calls with identical inputs produce different wire strings.
func Encrypt(plaintext []byte, key domain.SessionKey) (string, error) {
	aead, err := chacha20poly1305.New(key.Slice())
	if err != nil {
		return "", err
	}
	nonce := make([]byte, NonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(nonce) + ":" + base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt reverses Encrypt. Any malformed input or authentication failure
// yields an error wrapping ErrDecryptionFailed, never garbage output.
func Decrypt(wire string, key domain.SessionKey) ([]byte, error) {
	nonceB64, ctB64, ok := strings.Cut(wire, ":")
	if !ok {
		return nil, fmt.Errorf("%w: missing delimiter", ErrDecryptionFailed)
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad nonce encoding", ErrDecryptionFailed)
	}
	if len(nonce) != NonceBytes {
		return nil, fmt.Errorf("%w: bad nonce size %d", ErrDecryptionFailed, len(nonce))
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext encoding", ErrDecryptionFailed)
	}
	aead, err := chacha20poly1305.New(key.Slice())
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plain, nil
}
