package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"cloakchat/internal/crypto"
	"cloakchat/internal/domain"
	"cloakchat/internal/logging"
)

// IdentityFileStore persists one identity per local user under dir.
//
// Two representations are written, as the protocol needs both: the sealed
// private-key file (re-importable) and the raw public key in a plain
// sidecar so other tooling can read it without the passphrase.
type IdentityFileStore struct {
	dir string
	log logging.Logger
	mu  sync.Mutex
}

// NewIdentityFileStore returns a store rooted at dir.
func NewIdentityFileStore(dir string, log logging.Logger) *IdentityFileStore {
	return &IdentityFileStore{dir: dir, log: log}
}

// LoadOrCreate loads the persisted identity for userID, regenerating a
// fresh pair on any absence or deserialization failure. It never fails
// outward for storage problems; only an entropy failure is fatal.
// regenerated is true when a previously persisted (now unreadable)
// identity was replaced, which breaks decryption of history encrypted
// under the old pair.
func (s *IdentityFileStore) LoadOrCreate(userID, passphrase string) (domain.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	path := s.identityPath(userID)

	blob, err := readFile(path)
	if err == nil && blob != nil {
		if id, err := unseal(blob, passphrase, userID); err == nil {
			return id, false, nil
		} else {
			s.log.Warn(ctx, "identity unreadable, regenerating; old history becomes undecryptable",
				"user", userID, "err", err)
		}
	} else if err != nil {
		s.log.Warn(ctx, "identity file unreadable, regenerating", "user", userID, "err", err)
	}
	hadPrevious := blob != nil

	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("generate identity: %w", err)
	}
	id := domain.Identity{UserID: userID, XPriv: priv, XPub: pub}

	// Persist both representations. Failure to persist is logged, not
	// fatal: the identity still works for this process lifetime.
	if err := s.persist(id, passphrase); err != nil {
		s.log.Warn(ctx, "persisting identity failed", "user", userID, "err", err)
	}
	return id, hadPrevious, nil
}

func (s *IdentityFileStore) persist(id domain.Identity, passphrase string) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	blob, err := crypto.SealWithPassphrase(passphrase, raw)
	if err != nil {
		return err
	}
	if err := writeFile(s.identityPath(id.UserID), blob, 0o600); err != nil {
		return err
	}
	pubB64 := base64.StdEncoding.EncodeToString(id.XPub.Slice())
	return writeFile(s.publicPath(id.UserID), []byte(pubB64+"\n"), 0o644)
}

func (s *IdentityFileStore) identityPath(userID string) string {
	return filepath.Join(s.dir, "identity-"+userID+".enc")
}

func (s *IdentityFileStore) publicPath(userID string) string {
	return filepath.Join(s.dir, "identity-"+userID+".pub")
}

func unseal(blob []byte, passphrase, userID string) (domain.Identity, error) {
	raw, err := crypto.OpenWithPassphrase(passphrase, blob)
	if err != nil {
		return domain.Identity{}, err
	}
	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return domain.Identity{}, err
	}
	if id.UserID != userID {
		return domain.Identity{}, fmt.Errorf("identity file belongs to %q", id.UserID)
	}
	return id, nil
}

// Compile-time assertion that IdentityFileStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityFileStore)(nil)
