package credential

import (
	"context"
	"errors"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"todo-client/domain"
)

type stubBackend struct {
	getFn func(ctx context.Context, key string) (string, bool, error)
}

func (s *stubBackend) Available() bool { return true }

func (s *stubBackend) Get(ctx context.Context, key string) (string, bool, error) {
	return s.getFn(ctx, key)
}

func (s *stubBackend) Set(context.Context, string, string) error { return errors.New("unexpected Set call") }

func (s *stubBackend) Delete(context.Context, ...string) error { return errors.New("unexpected Delete call") }

func TestStoreTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemory(), nil)

	if _, ok := store.Token(ctx); ok {
		t.Fatalf("expected no token in empty store")
	}
	if err := store.SetToken(ctx, "a.b.c"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	token, ok := store.Token(ctx)
	if !ok || token != "a.b.c" {
		t.Fatalf("unexpected token %q/%v", token, ok)
	}
	if err := store.ClearToken(ctx); err != nil {
		t.Fatalf("clear token: %v", err)
	}
	if _, ok := store.Token(ctx); ok {
		t.Fatalf("expected token to be cleared")
	}
}

func TestStoreEmptyTokenIsAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemory(), nil)
	if err := store.SetToken(ctx, ""); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if _, ok := store.Token(ctx); ok {
		t.Fatalf("empty token should be reported as absent")
	}
}

func TestStoreClearTokenKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemory(), nil)
	_ = store.SetToken(ctx, "a.b.c")
	if err := store.StoreIdentity(ctx, domain.Identity{ID: "u1", Email: "u1@example.com"}); err != nil {
		t.Fatalf("store identity: %v", err)
	}

	if err := store.ClearToken(ctx); err != nil {
		t.Fatalf("clear token: %v", err)
	}
	id, ok := store.Identity(ctx)
	if !ok || id.ID != "u1" {
		t.Fatalf("expected identity to survive token clear, got %#v/%v", id, ok)
	}

	if err := store.ClearIdentity(ctx); err != nil {
		t.Fatalf("clear identity: %v", err)
	}
	if _, ok := store.Identity(ctx); ok {
		t.Fatalf("expected identity to be cleared")
	}
}

func TestStoreIdentityRequiresID(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	_ = mem.Set(ctx, KeyUserEmail, "someone@example.com")
	store := NewStore(mem, nil)

	if _, ok := store.Identity(ctx); ok {
		t.Fatalf("identity without id must be absent")
	}
}

func TestStoreIdentityDropsStaleCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemory(), nil)
	_ = store.StoreIdentity(ctx, domain.Identity{ID: "u1", Email: "a@example.com", CreatedAt: "2024-01-01T00:00:00"})
	_ = store.StoreIdentity(ctx, domain.Identity{ID: "u2", Email: "b@example.com", Name: "b"})

	id, ok := store.Identity(ctx)
	if !ok {
		t.Fatalf("expected identity")
	}
	want := domain.Identity{ID: "u2", Email: "b@example.com", Name: "b"}
	if id != want {
		t.Fatalf("unexpected identity %#v", id)
	}
}

func TestStoreUnavailableIsNoop(t *testing.T) {
	ctx := context.Background()
	for name, store := range map[string]*Store{
		"nil backend": NewStore(nil, nil),
		"unavailable": NewStore(Unavailable{}, nil),
		"empty file":  NewStore(NewFile(""), nil),
	} {
		t.Run(name, func(t *testing.T) {
			if store.Available() {
				t.Fatalf("expected store to be unavailable")
			}
			if err := store.SetToken(ctx, "a.b.c"); err != nil {
				t.Fatalf("set token: %v", err)
			}
			if _, ok := store.Token(ctx); ok {
				t.Fatalf("unavailable store returned a token")
			}
			if err := store.StoreIdentity(ctx, domain.Identity{ID: "u1"}); err != nil {
				t.Fatalf("store identity: %v", err)
			}
			if _, ok := store.Identity(ctx); ok {
				t.Fatalf("unavailable store returned an identity")
			}
			if err := store.ClearToken(ctx); err != nil {
				t.Fatalf("clear token: %v", err)
			}
			if err := store.ClearIdentity(ctx); err != nil {
				t.Fatalf("clear identity: %v", err)
			}
		})
	}
}

func TestStoreReadErrorIsLoggedAndAbsent(t *testing.T) {
	logger, hook := test.NewNullLogger()
	store := NewStore(&stubBackend{
		getFn: func(context.Context, string) (string, bool, error) {
			return "", false, errors.New("backend down")
		},
	}, logger)

	if _, ok := store.Token(context.Background()); ok {
		t.Fatalf("expected absent token on backend error")
	}
	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected a log entry")
	}
	if entry.Level != log.WarnLevel || entry.Message != "credential.read_failed" {
		t.Fatalf("unexpected log entry: %s %s", entry.Level, entry.Message)
	}
	if entry.Data["key"] != KeyAccessToken {
		t.Fatalf("unexpected key field: %v", entry.Data["key"])
	}
}
