// Package session decides who the current user is from the locally cached
// identity, the bearer token and, when needed, the profile endpoint.
package session

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"todo-client/credential"
	"todo-client/domain"
	"todo-client/token"
)

// ProfileFetcher loads the signed-in user's profile with the stored token.
type ProfileFetcher interface {
	Profile(ctx context.Context) (domain.Identity, error)
}

// Resolver produces the current user view. It never returns errors;
// failures degrade to an absent or partial identity.
type Resolver struct {
	store    *credential.Store
	profiles ProfileFetcher
	logger   *log.Logger
}

// NewResolver creates a Resolver. profiles may be nil, which disables the
// network fallback.
func NewResolver(store *credential.Store, profiles ProfileFetcher, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Resolver{store: store, profiles: profiles, logger: logger}
}

// Store returns the credential store the resolver reads from.
func (r *Resolver) Store() *credential.Store { return r.store }

// IsAuthenticated reports whether a non-empty token is stored. Expiry is
// not checked.
func (r *Resolver) IsAuthenticated(ctx context.Context) bool {
	_, ok := r.store.Token(ctx)
	return ok
}

// CurrentUser resolves the user from local state only.
//
// A cached identity with a non-empty id wins, even when the token is
// missing or expired. Otherwise an unexpired token yields an id-only
// identity built from its subject claim.
func (r *Resolver) CurrentUser(ctx context.Context) (domain.Identity, bool) {
	if id, ok := r.store.Identity(ctx); ok {
		return id, true
	}
	tok, ok := r.store.Token(ctx)
	if !ok || token.IsExpired(tok) {
		return domain.Identity{}, false
	}
	claims, ok := token.Decode(tok)
	if !ok || claims.Subject == "" {
		return domain.Identity{}, false
	}
	return domain.Identity{ID: claims.Subject}, true
}

// CurrentUserWithProfile is CurrentUser with a profile fetch when local
// state yields nothing or only an id. On fetch failure the local result
// is returned unchanged.
func (r *Resolver) CurrentUserWithProfile(ctx context.Context) (domain.Identity, bool) {
	id, ok := r.CurrentUser(ctx)
	if ok && !id.Partial() {
		return id, true
	}
	if !r.FetchAndStoreProfile(ctx) {
		return id, ok
	}
	if fetched, found := r.CurrentUser(ctx); found {
		return fetched, true
	}
	return id, ok
}

// FetchAndStoreProfile loads the profile with the stored token and caches
// it. It reports whether a profile was stored; without a token no request
// is made.
func (r *Resolver) FetchAndStoreProfile(ctx context.Context) bool {
	if r.profiles == nil {
		return false
	}
	if _, ok := r.store.Token(ctx); !ok {
		return false
	}
	profile, err := r.profiles.Profile(ctx)
	if err != nil {
		r.logger.WithField("error", err.Error()).Warn("session.profile_fetch_failed")
		return false
	}
	if profile.ID == "" {
		r.logger.Warn("session.profile_without_id")
		return false
	}
	if profile.Name == "" {
		profile.Name = emailLocalPart(profile.Email)
	}
	if err := r.store.StoreIdentity(ctx, profile); err != nil {
		r.logger.WithField("error", err.Error()).Warn("session.profile_store_failed")
		return false
	}
	return true
}

func emailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
