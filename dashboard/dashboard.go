// Package dashboard assembles the signed-in landing view: the current user
// and their task list.
package dashboard

import (
	"context"
	"errors"
	"fmt"

	"todo-client/apiclient"
	"todo-client/domain"
	"todo-client/tasks"
)

// ErrSigninRequired is returned by Load when no token is stored.
var ErrSigninRequired = errors.New("signin required")

// Session is the part of session.Resolver the dashboard reads.
type Session interface {
	IsAuthenticated(ctx context.Context) bool
	CurrentUserWithProfile(ctx context.Context) (domain.Identity, bool)
}

// View is what the dashboard renders.
type View struct {
	User    domain.Identity
	HasUser bool
	Tasks   []domain.Task
	Stats   domain.TaskStatistics
	Banner  string
}

// Load checks the session, resolves the user and loads the task list into
// store. A 401 from the task load yields ErrSigninRequired. Any other
// failed load is not an error: the view carries the banner and whatever
// the store already held.
func Load(ctx context.Context, sess Session, store *tasks.Store) (View, error) {
	if !sess.IsAuthenticated(ctx) {
		return View{}, ErrSigninRequired
	}
	user, ok := sess.CurrentUserWithProfile(ctx)
	if err := store.Load(ctx); errors.Is(err, apiclient.ErrUnauthorized) {
		return View{}, fmt.Errorf("%w: %w", ErrSigninRequired, err)
	}
	return View{
		User:    user,
		HasUser: ok,
		Tasks:   store.Tasks(),
		Stats:   store.Stats(),
		Banner:  store.Banner(),
	}, nil
}
