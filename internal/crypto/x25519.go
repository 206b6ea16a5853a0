package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"cloakchat/internal/domain"
)

// sessionInfo labels the HKDF expansion so session keys are bound to this
// protocol and cannot collide with other uses of the same DH secret.
const sessionInfo = "cloakchat v1 session"

// GenerateX25519 returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func GenerateX25519() (priv domain.X25519Private, pub domain.X25519Public, err error) {
	if _, err = rand.Read(priv[:]); err != nil {
		return
	}
	clamp(&priv)
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return
	}
	copy(pub[:], pb)
	return
}

// DeriveSessionKey computes the symmetric session key for a conversation
// pair: X25519(priv, peerPub) expanded through HKDF-SHA256. It is a pure
// function of its inputs, so both parties derive the same key without
// transmitting it, and re-deriving never changes the result.
func DeriveSessionKey(priv domain.X25519Private, peerPub domain.X25519Public) (domain.SessionKey, error) {
	var key domain.SessionKey
	secret, err := curve25519.X25519(priv.Slice(), peerPub.Slice())
	if err != nil {
		return key, err
	}
	r := hkdf.New(sha256.New, secret, nil, []byte(sessionInfo))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, err
	}
	Wipe(secret)
	return key, nil
}

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
