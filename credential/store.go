// Package credential holds the bearer token and the cached identity of the
// signed-in user on top of a pluggable key-value Backend.
package credential

import (
	"context"

	log "github.com/sirupsen/logrus"

	"todo-client/domain"
)

// Storage keys. They match the keys the web frontend keeps in localStorage
// so a profile exported from a browser can be loaded as-is.
const (
	KeyAccessToken   = "access_token"
	KeyUserID        = "userId"
	KeyUserEmail     = "userEmail"
	KeyUserName      = "userName"
	KeyUserCreatedAt = "userCreatedAt"
)

var identityKeys = []string{KeyUserID, KeyUserEmail, KeyUserName, KeyUserCreatedAt}

// Store reads and writes session credentials. No validation is performed
// on stored values. Every operation is a no-op when the backend is
// unavailable.
type Store struct {
	backend Backend
	logger  *log.Logger
}

// NewStore wraps backend. A nil backend is treated as Unavailable.
func NewStore(backend Backend, logger *log.Logger) *Store {
	if backend == nil {
		backend = Unavailable{}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{backend: backend, logger: logger}
}

// Available reports whether the store has persistent storage behind it.
func (s *Store) Available() bool {
	return s.backend.Available()
}

// SetToken persists token.
func (s *Store) SetToken(ctx context.Context, token string) error {
	if !s.Available() {
		return nil
	}
	return s.backend.Set(ctx, KeyAccessToken, token)
}

// Token returns the stored token. An empty stored value counts as absent.
func (s *Store) Token(ctx context.Context) (string, bool) {
	v, ok := s.get(ctx, KeyAccessToken)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ClearToken removes the token. The cached identity is left in place.
func (s *Store) ClearToken(ctx context.Context) error {
	if !s.Available() {
		return nil
	}
	return s.backend.Delete(ctx, KeyAccessToken)
}

// StoreIdentity writes the identity snapshot. A missing CreatedAt removes
// any previously stored value rather than leaving another account's date.
func (s *Store) StoreIdentity(ctx context.Context, id domain.Identity) error {
	if !s.Available() {
		return nil
	}
	if err := s.backend.Set(ctx, KeyUserID, id.ID); err != nil {
		return err
	}
	if err := s.backend.Set(ctx, KeyUserEmail, id.Email); err != nil {
		return err
	}
	if err := s.backend.Set(ctx, KeyUserName, id.Name); err != nil {
		return err
	}
	if id.CreatedAt == "" {
		return s.backend.Delete(ctx, KeyUserCreatedAt)
	}
	return s.backend.Set(ctx, KeyUserCreatedAt, id.CreatedAt)
}

// Identity returns the cached identity. It is absent unless a non-empty
// user id is stored.
func (s *Store) Identity(ctx context.Context) (domain.Identity, bool) {
	userID, ok := s.get(ctx, KeyUserID)
	if !ok || userID == "" {
		return domain.Identity{}, false
	}
	email, _ := s.get(ctx, KeyUserEmail)
	name, _ := s.get(ctx, KeyUserName)
	createdAt, _ := s.get(ctx, KeyUserCreatedAt)
	return domain.Identity{ID: userID, Email: email, Name: name, CreatedAt: createdAt}, true
}

// ClearIdentity removes every identity field.
func (s *Store) ClearIdentity(ctx context.Context) error {
	if !s.Available() {
		return nil
	}
	return s.backend.Delete(ctx, identityKeys...)
}

func (s *Store) get(ctx context.Context, key string) (string, bool) {
	if !s.Available() {
		return "", false
	}
	v, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.WithFields(log.Fields{"key": key, "error": err.Error()}).Warn("credential.read_failed")
		return "", false
	}
	return v, ok
}
