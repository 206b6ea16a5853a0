// Package store persists cloakchat's local state.
//
// Two backends cover the two sensitivity classes:
//
//   - IdentityFileStore keeps the local key pair in a single file sealed
//     under a passphrase (scrypt + ChaCha20-Poly1305). Private key
//     material never reaches disk unencrypted.
//   - BoltStateStore keeps the opportunistic caches — peer public keys,
//     decrypted message history, unread counters — in one bbolt file with
//     a bucket per concern.
//
// All cache reads are best-effort: missing or corrupt storage yields
// empty results, never an error the caller has to handle. Identity reads
// that fail trigger regeneration instead of failure; the caller is told a
// regeneration happened so it can warn that old history is lost.
package store
