// Package commands implements the cloakchat CLI surface: identity setup,
// sending and reading encrypted conversations, media sharing with
// provenance, and a live watch mode.
package commands
