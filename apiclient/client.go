// Package apiclient is a thin HTTP wrapper around the remote todo API. It
// attaches the stored bearer token to every authenticated request.
package apiclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"todo-client/domain"
)

const (
	maxResponseSize  = 1 << 20
	maxErrorBodySize = 512
	defaultTimeout   = 15 * time.Second
	headerRequestID  = "X-Request-ID"
)

// TokenSource yields the bearer token for authenticated requests.
// *credential.Store satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// Client talks to the remote API.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
	logger  *log.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for per-request records.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout sets the timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New creates a Client for baseURL. tokens may be nil for a client that
// only performs login and signup.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was configured with.
func (c *Client) BaseURL() string { return c.baseURL }

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for a bearer token. The username field
// carries the email address.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var out loginResponse
	err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}, &out)
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &Error{Method: http.MethodPost, Route: "/auth/login", StatusCode: http.StatusOK, Body: "response carried no access_token"}
	}
	return out.AccessToken, nil
}

// SignupRequest is the payload of the signup endpoint.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// SignupResponse confirms account creation.
type SignupResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// Signup creates an account.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (SignupResponse, error) {
	var out SignupResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/signup", "/auth/signup", false, req, &out)
	return out, err
}

// Profile fetches the signed-in user.
func (c *Client) Profile(ctx context.Context) (domain.Identity, error) {
	var out domain.Identity
	err := c.doJSON(ctx, http.MethodGet, "/api/profile", "/api/profile", true, nil, &out)
	return out, err
}

// ListTodos returns every task of the signed-in user.
func (c *Client) ListTodos(ctx context.Context) ([]domain.Task, error) {
	var out []domain.Task
	if err := c.doJSON(ctx, http.MethodGet, "/api/todos", "/api/todos", true, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Task{}
	}
	return out, nil
}

// CreateTodo creates a task and returns the server record.
func (c *Client) CreateTodo(ctx context.Context, in domain.NewTask) (domain.Task, error) {
	var out domain.Task
	err := c.doJSON(ctx, http.MethodPost, "/api/todos", "/api/todos", true, in, &out)
	return out, err
}

// UpdateTodo applies update to task id.
func (c *Client) UpdateTodo(ctx context.Context, id int64, update domain.TaskUpdate) (domain.Task, error) {
	var out domain.Task
	err := c.doJSON(ctx, http.MethodPut, todoPath(id), "/api/todos/:id", true, update, &out)
	return out, err
}

// DeleteTodo removes task id.
func (c *Client) DeleteTodo(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, todoPath(id), "/api/todos/:id", true, nil, nil)
}

// Chat sends a message with the running conversation.
func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	if req.ConversationHistory == nil {
		req.ConversationHistory = []domain.ChatMessage{}
	}
	var out domain.ChatResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/chat", "/api/chat", false, req, &out)
	return out, err
}

func todoPath(id int64) string {
	return "/api/todos/" + strconv.FormatInt(id, 10)
}

type request struct {
	method      string
	path        string
	route       string
	body        io.Reader
	contentType string
	auth        bool
}

func (c *Client) doJSON(ctx context.Context, method, path, route string, auth bool, in, out any) error {
	req := request{method: method, path: path, route: route, auth: auth}
	if in != nil {
		payload, err := sonic.ConfigStd.Marshal(in)
		if err != nil {
			return err
		}
		req.body = bytes.NewReader(payload)
		req.contentType = "application/json"
	}
	return c.do(ctx, req, out)
}

func (c *Client) do(ctx context.Context, r request, out any) (err error) {
	if r.route == "" {
		r.route = r.path
	}
	requestID := uuid.NewString()
	metrics, ctx := newRequestMetrics(ctx, c.logger, r.method, r.route, requestID)
	status := 0
	defer func() {
		metrics.Log(status, err)
	}()

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return &Error{Method: r.method, Route: r.route, Err: err}
	}
	req.Header.Set(headerRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.auth {
		token, ok := "", false
		if c.tokens != nil {
			token, ok = c.tokens.Token(ctx)
		}
		if !ok {
			return &Error{Method: r.method, Route: r.route, Err: ErrNoToken}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Method: r.method, Route: r.route, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &Error{Method: r.method, Route: r.route, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil
	}
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(resp.Body, maxResponseSize))
	if err := dec.Decode(out); err != nil {
		return &Error{Method: r.method, Route: r.route, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}
