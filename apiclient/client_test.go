package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"todo-client/apitest"
	"todo-client/credential"
	"todo-client/domain"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, bool) {
	return string(s), s != ""
}

func newTestClient(t *testing.T, baseURL string, tokens TokenSource) *Client {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return New(baseURL, tokens, WithLogger(logger))
}

func TestLoginReturnsToken(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	srv.AddUser("bear@example.com", "honey", "Bear")

	client := newTestClient(t, srv.URL, nil)
	token, err := client.Login(context.Background(), "bear@example.com", "honey")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	srv.AddUser("bear@example.com", "honey", "Bear")

	client := newTestClient(t, srv.URL, nil)
	_, err := client.Login(context.Background(), "bear@example.com", "salmon")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", StatusCode(err))
	}
}

func TestLoginSendsForm(t *testing.T) {
	var gotContentType, gotUsername string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotUsername = r.FormValue("username")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a.b.c","token_type":"bearer"}`))
	}))
	t.Cleanup(srv.Close)

	token, err := newTestClient(t, srv.URL, nil).Login(context.Background(), "bear@example.com", "honey")
	if err != nil || token != "a.b.c" {
		t.Fatalf("unexpected login result %q/%v", token, err)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
	if gotUsername != "bear@example.com" {
		t.Fatalf("username should carry the email, got %q", gotUsername)
	}
}

func TestSignupThenDuplicate(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	client := newTestClient(t, srv.URL, nil)
	ctx := context.Background()

	resp, err := client.Signup(ctx, SignupRequest{Email: "cub@example.com", Password: "pw", Name: "Cub"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if resp.Email != "cub@example.com" {
		t.Fatalf("unexpected signup response %#v", resp)
	}
	if _, err := client.Signup(ctx, SignupRequest{Email: "cub@example.com", Password: "pw"}); StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 on duplicate signup, got %v", err)
	}
}

func TestAuthenticatedCallWithoutToken(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL, credential.NewStore(credential.NewMemory(), nil))
	_, err := client.ListTodos(context.Background())
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if srv.Calls(http.MethodGet, "/api/todos") != 0 {
		t.Fatalf("no request should be sent without a token")
	}
}

func TestTodoLifecycle(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	userID := srv.AddUser("bear@example.com", "honey", "Bear")
	client := newTestClient(t, srv.URL, staticToken(srv.IssueToken(userID, time.Hour)))
	ctx := context.Background()

	created, err := client.CreateTodo(ctx, domain.NewTask{Title: "Find honey", Description: "north woods"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 || created.Title != "Find honey" || created.DescriptionText() != "north woods" {
		t.Fatalf("unexpected created task %#v", created)
	}

	done := true
	updated, err := client.UpdateTodo(ctx, created.ID, domain.TaskUpdate{Completed: &done})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Completed {
		t.Fatalf("expected completed task")
	}

	list, err := client.ListTodos(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID || !list[0].Completed {
		t.Fatalf("unexpected list %#v", list)
	}

	if err := client.DeleteTodo(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := client.DeleteTodo(ctx, created.ID); StatusCode(err) != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %v", err)
	}
}

func TestListTodosEmptyIsNotNil(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	userID := srv.AddUser("bear@example.com", "honey", "")
	client := newTestClient(t, srv.URL, staticToken(srv.IssueToken(userID, time.Hour)))

	list, err := client.ListTodos(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", list)
	}
}

func TestProfile(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	userID := srv.AddUser("bear@example.com", "honey", "Bear")
	client := newTestClient(t, srv.URL, staticToken(srv.IssueToken(userID, time.Hour)))

	id, err := client.Profile(context.Background())
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if id.ID != userID || id.Email != "bear@example.com" || id.Name != "Bear" || id.CreatedAt == "" {
		t.Fatalf("unexpected profile %#v", id)
	}
}

func TestProfileNumericID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":42,"email":"a@b.c","name":null,"created_at":"2024-01-01T00:00:00"}`))
	}))
	t.Cleanup(srv.Close)
	client := newTestClient(t, srv.URL, staticToken("tok"))

	id, err := client.Profile(context.Background())
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if id.ID != "42" || id.Email != "a@b.c" || id.Name != "" {
		t.Fatalf("unexpected profile %#v", id)
	}
}

func TestListTodosNullBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("null"))
	}))
	t.Cleanup(srv.Close)
	client := newTestClient(t, srv.URL, staticToken("tok"))

	list, err := client.ListTodos(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", list)
	}
}

func TestDecodeErrorKeepsCause(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":`))
	}))
	t.Cleanup(srv.Close)
	client := newTestClient(t, srv.URL, staticToken("tok"))

	_, err := client.Profile(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Err == nil {
		t.Fatalf("expected decode error with cause, got %v", err)
	}
	if msg := err.Error(); !strings.HasPrefix(msg, "GET /api/profile: status 200: ") || !strings.HasSuffix(msg, apiErr.Err.Error()) {
		t.Fatalf("error text should include the cause, got %q", msg)
	}
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{err: &Error{Method: "GET", Route: "/api/todos", StatusCode: 500}, want: "GET /api/todos: status 500"},
		{err: &Error{Method: "GET", Route: "/api/todos", StatusCode: 500, Body: "oops"}, want: "GET /api/todos: status 500: oops"},
		{err: &Error{Method: "GET", Route: "/api/todos", StatusCode: 200, Err: errors.New("bad json")}, want: "GET /api/todos: status 200: bad json"},
		{err: &Error{Method: "GET", Route: "/api/todos", Err: ErrNoToken}, want: "GET /api/todos: " + ErrNoToken.Error()},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Fatalf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestExpiredTokenIsUnauthorized(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	userID := srv.AddUser("bear@example.com", "honey", "Bear")
	client := newTestClient(t, srv.URL, staticToken(srv.IssueToken(userID, -time.Minute)))

	if _, err := client.Profile(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	if err := newTestClient(t, srv.URL+"/", staticToken("a.b.c")).DeleteTodo(context.Background(), 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got.Get("Authorization") != "Bearer a.b.c" {
		t.Fatalf("unexpected authorization header %q", got.Get("Authorization"))
	}
	if got.Get(headerRequestID) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestTransportErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	logger, hook := test.NewNullLogger()
	client := New(url, staticToken("a.b.c"), WithLogger(logger))
	_, err := client.ListTodos(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 0 || apiErr.Err == nil {
		t.Fatalf("expected transport error, got %#v", err)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.ErrorLevel || entry.Message != requestLogName {
		t.Fatalf("expected error log entry, got %#v", entry)
	}
}

func TestMalformedResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":`))
	}))
	t.Cleanup(srv.Close)

	if _, err := newTestClient(t, srv.URL, staticToken("a.b.c")).Profile(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestChat(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)

	resp, err := newTestClient(t, srv.URL, nil).Chat(context.Background(), domain.ChatRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(resp.ConversationHistory) != 2 || resp.ConversationHistory[1].Role != "assistant" {
		t.Fatalf("unexpected history %#v", resp.ConversationHistory)
	}
}

func TestInjectedFailure(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	userID := srv.AddUser("bear@example.com", "honey", "Bear")
	client := newTestClient(t, srv.URL, staticToken(srv.IssueToken(userID, time.Hour)))
	srv.Fail(http.MethodPost, "/api/todos", http.StatusInternalServerError)

	_, err := client.CreateTodo(context.Background(), domain.NewTask{Title: "x"})
	if StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
	if len(srv.Tasks(userID)) != 0 {
		t.Fatalf("failed create must not store a task")
	}
}
