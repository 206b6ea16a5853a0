package domain

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// SessionKey is the symmetric key both ends of a conversation derive
// independently from their own private key and the peer's public key.
// Derivation is deterministic: the same key pair and peer public key
// always yield the same session key, so it is never transmitted.
type SessionKey [32]byte

// Slice returns the key as a []byte.
func (k SessionKey) Slice() []byte { return k[:] }

// Identity binds a local user id to its key-agreement pair. It lives for
// the lifetime of the installation; losing it means history encrypted
// under it becomes undecryptable.
type Identity struct {
	UserID string        `json:"userId"`
	XPriv  X25519Private `json:"xpriv"`
	XPub   X25519Public  `json:"xpub"`
}
