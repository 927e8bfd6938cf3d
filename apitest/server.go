// Package apitest runs an in-process fake of the remote todo API for tests.
// It implements login, signup, profile, todo CRUD and chat with the same
// request and response shapes as the real service, plus fault injection.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"todo-client/domain"
)

type user struct {
	id           string
	email        string
	name         string
	passwordHash []byte
	createdAt    string
}

// Server is a running fake API.
type Server struct {
	*httptest.Server

	secret []byte
	parser *jwt.Parser
	ttl    time.Duration

	mu       sync.Mutex
	users    map[string]*user
	todos    map[string][]domain.Task
	nextID   int64
	failures map[string]int
	gates    map[string]chan struct{}
	calls    map[string]int
}

// New starts a fake API. Call Close when done.
func New() *Server {
	s := &Server{
		secret:   []byte("apitest-" + uuid.NewString()),
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation()),
		ttl:      30 * time.Minute,
		users:    make(map[string]*user),
		todos:    make(map[string][]domain.Task),
		nextID:   1,
		failures: make(map[string]int),
		gates:    make(map[string]chan struct{}),
		calls:    make(map[string]int),
	}
	s.Server = httptest.NewServer(s.handler())
	return s
}

func (s *Server) handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.faults)

	e.POST("/auth/login", s.login)
	e.POST("/auth/signup", s.signup)
	e.GET("/api/profile", s.profile)
	e.GET("/api/todos", s.listTodos)
	e.POST("/api/todos", s.createTodo)
	e.PUT("/api/todos/:id", s.updateTodo)
	e.DELETE("/api/todos/:id", s.deleteTodo)
	e.POST("/api/chat", s.chat)
	e.GET("/api/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return e
}

func routeKey(method, route string) string {
	return method + " " + route
}

// Fail makes every request to method+route answer with status until
// ClearFailures is called. route uses path parameters, e.g. "/api/todos/:id".
func (s *Server) Fail(method, route string, status int) {
	s.mu.Lock()
	s.failures[routeKey(method, route)] = status
	s.mu.Unlock()
}

// ClearFailures removes every injected failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	s.failures = make(map[string]int)
	s.mu.Unlock()
}

// Hold makes requests to method+route wait until the returned release
// function is called.
func (s *Server) Hold(method, route string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[routeKey(method, route)] = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, routeKey(method, route))
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many requests reached method+route.
func (s *Server) Calls(method, route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[routeKey(method, route)]
}

func (s *Server) faults(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := routeKey(c.Request().Method, c.Path())
		s.mu.Lock()
		s.calls[key]++
		status, failing := s.failures[key]
		gate := s.gates[key]
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}
		if failing {
			return c.JSON(status, map[string]string{"detail": http.StatusText(status)})
		}
		return next(c)
	}
}

// AddUser registers an account directly and returns its id.
func (s *Server) AddUser(email, password, name string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic("apitest: hash password: " + err.Error())
	}
	u := &user{
		id:           uuid.NewString(),
		email:        email,
		name:         name,
		passwordHash: hash,
		createdAt:    time.Now().UTC().Format("2006-01-02T15:04:05"),
	}
	s.mu.Lock()
	s.users[email] = u
	s.mu.Unlock()
	return u.id
}

// SeedTask stores a task for userID and returns it with its assigned id.
func (s *Server) SeedTask(userID, title string, completed bool) domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.newTaskLocked(userID, title, nil)
	t.Completed = completed
	s.todos[userID][0] = t
	return t
}

// Tasks returns the stored tasks of userID, newest first.
func (s *Server) Tasks(userID string) []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Task{}, s.todos[userID]...)
}

func (s *Server) newTaskLocked(userID, title string, description *string) domain.Task {
	now := time.Now().UTC().Format("2006-01-02T15:04:05")
	t := domain.Task{
		ID:          s.nextID,
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextID++
	s.todos[userID] = append([]domain.Task{t}, s.todos[userID]...)
	return t
}

func (s *Server) login(c echo.Context) error {
	email := c.FormValue("username")
	password := c.FormValue("password")
	s.mu.Lock()
	u := s.users[email]
	s.mu.Unlock()
	if u == nil || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)) != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"access_token": s.IssueToken(u.id, s.ttl),
		"token_type":   "bearer",
	})
}

type signupBody struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name"`
}

func (s *Server) signup(c echo.Context) error {
	var body signupBody
	if err := c.Bind(&body); err != nil || body.Email == "" || body.Password == "" {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"})
	}
	s.mu.Lock()
	_, exists := s.users[body.Email]
	s.mu.Unlock()
	if exists {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "Email already registered"})
	}
	name := ""
	if body.Name != nil {
		name = *body.Name
	}
	s.AddUser(body.Email, body.Password, name)
	return c.JSON(http.StatusOK, map[string]string{"message": "User created", "email": body.Email})
}

func (s *Server) authenticate(c echo.Context) (*user, error) {
	userID, err := s.userIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return nil, c.JSON(http.StatusUnauthorized, map[string]string{"detail": err.Error()})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.id == userID {
			return u, nil
		}
	}
	return nil, c.JSON(http.StatusUnauthorized, map[string]string{"detail": "unknown user"})
}

func (s *Server) profile(c echo.Context) error {
	u, err := s.authenticate(c)
	if u == nil {
		return err
	}
	out := map[string]any{"id": u.id, "email": u.email, "created_at": u.createdAt, "name": nil}
	if u.name != "" {
		out["name"] = u.name
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) listTodos(c echo.Context) error {
	u, err := s.authenticate(c)
	if u == nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Tasks(u.id))
}

func (s *Server) createTodo(c echo.Context) error {
	u, err := s.authenticate(c)
	if u == nil {
		return err
	}
	var body struct {
		Title       string  `json:"title"`
		Description *string `json:"description"`
	}
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.Title) == "" {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "title is required"})
	}
	s.mu.Lock()
	t := s.newTaskLocked(u.id, body.Title, body.Description)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, t)
}

func (s *Server) updateTodo(c echo.Context) error {
	u, err := s.authenticate(c)
	if u == nil {
		return err
	}
	id, perr := strconv.ParseInt(c.Param("id"), 10, 64)
	if perr != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "invalid id"})
	}
	var body domain.TaskUpdate
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.todos[u.id] {
		if t.ID != id {
			continue
		}
		if body.Completed != nil {
			t.Completed = *body.Completed
		}
		t.UpdatedAt = time.Now().UTC().Format("2006-01-02T15:04:05")
		s.todos[u.id][i] = t
		return c.JSON(http.StatusOK, t)
	}
	return c.JSON(http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("todo %d not found", id)})
}

func (s *Server) deleteTodo(c echo.Context) error {
	u, err := s.authenticate(c)
	if u == nil {
		return err
	}
	id, perr := strconv.ParseInt(c.Param("id"), 10, 64)
	if perr != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "invalid id"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.todos[u.id]
	for i, t := range list {
		if t.ID == id {
			s.todos[u.id] = append(list[:i:i], list[i+1:]...)
			return c.JSON(http.StatusOK, map[string]string{"message": "Todo deleted"})
		}
	}
	return c.JSON(http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("todo %d not found", id)})
}

func (s *Server) chat(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil || req.Message == "" {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "message is required"})
	}
	reply := "You said: " + req.Message
	history := append(append([]domain.ChatMessage(nil), req.ConversationHistory...),
		domain.ChatMessage{Role: "user", Content: req.Message},
		domain.ChatMessage{Role: "assistant", Content: reply},
	)
	return c.JSON(http.StatusOK, domain.ChatResponse{Response: reply, ConversationHistory: history})
}
