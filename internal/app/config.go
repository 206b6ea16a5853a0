package app

import (
	"net/http"
	"time"

	"cloakchat/internal/logging"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home       string        // config directory, e.g. $HOME/.cloakchat
	RelayURL   string        // relay base URL, e.g. http://127.0.0.1:8080
	UserID     string        // local identity name
	Passphrase string        // protects the identity file at rest
	JWTSecret  []byte        // shared with the relay for connection tokens
	TokenTTL   time.Duration // connection token lifetime; zero means 24h
	HTTP       *http.Client  // optional; defaults to http.DefaultClient
	Logger     logging.Logger
}
