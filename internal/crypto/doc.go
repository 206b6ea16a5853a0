// Package crypto exposes the primitives used by cloakchat.
//
// Contents
//
//   - X25519 key generation, clamping and session-key derivation
//     (GenerateX25519, DeriveSessionKey)
//   - The message wire codec: ChaCha20-Poly1305 with a fresh 96-bit nonce
//     per message, encoded as base64(nonce) ":" base64(ciphertext)
//     (Encrypt, Decrypt)
//   - A passphrase envelope for key material at rest (SealWithPassphrase,
//     OpenWithPassphrase)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Fixed-size key types live in internal/domain to avoid accidental
// reallocations. Callers should treat returned secrets as sensitive and
// rely on Wipe when practical to reduce lifetime in memory.
package crypto
