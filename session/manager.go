package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"todo-client/apiclient"
	"todo-client/credential"
	"todo-client/domain"
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrLoginFailed        = errors.New("login failed")
	ErrSignupFailed       = errors.New("signup failed")
)

// UserMessage returns the text shown to the user for a flow error.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredentials):
		return "Email and password are required"
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords do not match"
	case errors.Is(err, ErrLoginFailed):
		return "Invalid email or password"
	case errors.Is(err, ErrSignupFailed):
		return "Failed to create account. Email may already be registered."
	}
	return err.Error()
}

// API is the part of the remote API the session flows use.
type API interface {
	ProfileFetcher
	Login(ctx context.Context, email, password string) (string, error)
	Signup(ctx context.Context, req apiclient.SignupRequest) (apiclient.SignupResponse, error)
}

// Manager runs sign-in, sign-up and sign-out on top of a Resolver.
type Manager struct {
	*Resolver
	api API
}

// NewManager wires a Manager to store and api.
func NewManager(store *credential.Store, api API, logger *log.Logger) *Manager {
	return &Manager{Resolver: NewResolver(store, api, logger), api: api}
}

// Login exchanges credentials for a token and caches the profile. The
// previously cached identity is discarded before the new profile is read
// so a stale identity from another account cannot survive. A failed
// profile fetch does not fail the login.
func (m *Manager) Login(ctx context.Context, email, password string) (domain.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.Identity{}, ErrMissingCredentials
	}
	tok, err := m.api.Login(ctx, email, password)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if err := m.store.ClearIdentity(ctx); err != nil {
		return domain.Identity{}, fmt.Errorf("clear cached identity: %w", err)
	}
	if err := m.store.SetToken(ctx, tok); err != nil {
		return domain.Identity{}, fmt.Errorf("store token: %w", err)
	}
	if !m.FetchAndStoreProfile(ctx) {
		m.logger.WithField("email", email).Info("session.login_without_profile")
	}
	id, _ := m.CurrentUser(ctx)
	return id, nil
}

// Signup validates the form locally and creates the account. Validation
// failures are returned before any request is sent.
func (m *Manager) Signup(ctx context.Context, email, password, confirm, name string) error {
	email = strings.TrimSpace(email)
	if password != confirm {
		return ErrPasswordMismatch
	}
	if email == "" || password == "" {
		return ErrMissingCredentials
	}
	if _, err := m.api.Signup(ctx, apiclient.SignupRequest{Email: email, Password: password, Name: strings.TrimSpace(name)}); err != nil {
		return fmt.Errorf("%w: %w", ErrSignupFailed, err)
	}
	return nil
}

// Logout clears the token and the cached identity.
func (m *Manager) Logout(ctx context.Context) error {
	return errors.Join(m.store.ClearToken(ctx), m.store.ClearIdentity(ctx))
}

// HandleUnauthorized reacts to a 401 from the API by dropping the token.
// The cached identity stays until an explicit logout.
func (m *Manager) HandleUnauthorized(ctx context.Context) {
	if err := m.store.ClearToken(ctx); err != nil {
		m.logger.WithField("error", err.Error()).Warn("session.clear_token_failed")
		return
	}
	m.logger.Info("session.token_cleared_after_401")
}
