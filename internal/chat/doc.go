// Package chat is the conversation engine tying the collaborators
// together: relay events in, session keys and decrypted timelines out.
//
// The engine is event-driven. A single pump goroutine fetches inbox
// events from the relay, dispatches them, and acks what it processed;
// commands such as Send and Open run on the caller's goroutine and share
// state with the pump through the engine's lock. An inbound ciphertext
// whose sender key is unknown is buffered, a key request goes out, and
// the buffer replays when the key event arrives. Nothing in this package
// ever drops a message because a key was late.
package chat
