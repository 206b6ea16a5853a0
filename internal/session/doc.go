// Package session manages the per-peer symmetric session keys.
//
// Keys are derived once per peer per process lifetime from the local
// private key and the peer's announced public key, then cached. Callers
// that need a key immediately (a send, or a final decrypt attempt) use
// AwaitResolve, which triggers a key request toward the relay and
// suspends on a per-peer channel until the key-resolved event arrives or
// the bound expires. Routine inbound handling treats an absent key as
// "buffer and request", never as an error.
package session
