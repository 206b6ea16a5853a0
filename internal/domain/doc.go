// Package domain holds the core types shared across cloakchat: key
// material, the message timeline model, the relay wire events, and the
// interfaces the stores and the relay client implement.
//
// The message model is a tagged variant (text, media, undecryptable)
// rather than optional-field duck typing, so handling can be checked for
// exhaustiveness.
package domain
