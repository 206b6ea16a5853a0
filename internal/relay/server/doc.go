// Package server implements the relay collaborator: an in-memory
// store-and-forward service with a per-user inbox per authenticated
// client.
//
// The peer-key registry is deliberately ephemeral. It is rebuilt from
// client announcements, does not survive a restart, and entries expire
// after a TTL so the map cannot grow without bound across distinct users.
// Clients must re-announce their key on every (re)connect.
//
// Inbox events are retained until acked, giving the at-least-once
// delivery the client contract requires. Message and media records are
// kept for the history and provenance endpoints.
package server
