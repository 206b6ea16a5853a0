// Package relay implements the domain.RelayClient boundary over JSON/HTTP.
//
// The relay is a store-and-forward service: clients announce their public
// key, post encrypted messages and media shares, and poll a private
// per-user inbox with explicit acks. Inbox delivery is at-least-once —
// events stay queued until acked — so consumers dedupe by message id.
// Ordering is best-effort per sender and not guaranteed across senders.
//
// Every request carries a bearer token; the server derives the connected
// user id from it. Non-2xx statuses are returned as errors with the HTTP
// method, path, and status text to aid diagnostics.
//
// The server-side peer-key registry is ephemeral, so the public key must
// be re-announced after every reconnect; the chat pump handles that.
package relay
