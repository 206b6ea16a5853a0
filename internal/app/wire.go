package app

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"cloakchat/internal/chat"
	"cloakchat/internal/domain"
	"cloakchat/internal/history"
	"cloakchat/internal/logging"
	"cloakchat/internal/pending"
	"cloakchat/internal/relay"
	"cloakchat/internal/session"
	"cloakchat/internal/store"
	"cloakchat/internal/unread"
)

// Wire bundles the stores, clients and the conversation engine for the CLI.
type Wire struct {
	Identity domain.Identity
	// Regenerated reports that no readable identity existed and a fresh
	// pair was created: history encrypted under the old pair is gone.
	Regenerated bool

	Relay domain.RelayClient
	State domain.StateStore
	Chat  *chat.Client
	Log   logging.Logger
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}

	// Identity first: everything downstream is scoped to it.
	ids := store.NewIdentityFileStore(cfg.Home, log)
	id, regenerated, err := ids.LoadOrCreate(cfg.UserID, cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}

	state, err := store.OpenStateStore(filepath.Join(cfg.Home, "state-"+cfg.UserID+".db"), log)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	token, err := relay.MintToken(cfg.UserID, cfg.JWTSecret, tokenTTL)
	if err != nil {
		_ = state.Close()
		return nil, fmt.Errorf("mint connection token: %w", err)
	}
	rc := relay.NewHTTP(cfg.RelayURL, token, httpClient)

	sessions := session.NewManager(id, state, rc.RequestPeerKey, log)
	engine := chat.New(id, rc, state, sessions, pending.NewQueue(0),
		history.NewReconciler(state, log), unread.NewTracker(state, log),
		log, chat.Config{})

	return &Wire{
		Identity:    id,
		Regenerated: regenerated,
		Relay:       rc,
		State:       state,
		Chat:        engine,
		Log:         log,
	}, nil
}

// Close releases the wire's resources.
func (w *Wire) Close() error {
	return w.State.Close()
}
