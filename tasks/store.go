// Package tasks holds the in-memory task list and applies mutations around
// API calls. Toggling completion is applied before the request and rolled
// back on failure; create and delete are reflected only after the API
// confirms them.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"todo-client/apiclient"
	"todo-client/domain"
)

// Banner texts shown for failed operations.
const (
	MessageLoadFailed   = "Failed to load todos"
	MessageCreateFailed = "Failed to create task"
	MessageUpdateFailed = "Failed to update task"
	MessageDeleteFailed = "Failed to delete task"
)

var (
	ErrLoadFailed   = errors.New("load tasks failed")
	ErrCreateFailed = errors.New("create task failed")
	ErrUpdateFailed = errors.New("update task failed")
	ErrDeleteFailed = errors.New("delete task failed")
	ErrEmptyTitle   = errors.New("task title is required")
	ErrNotFound     = errors.New("task not found")
)

// API is the part of the remote API the store calls.
type API interface {
	ListTodos(ctx context.Context) ([]domain.Task, error)
	CreateTodo(ctx context.Context, in domain.NewTask) (domain.Task, error)
	UpdateTodo(ctx context.Context, id int64, update domain.TaskUpdate) (domain.Task, error)
	DeleteTodo(ctx context.Context, id int64) error
}

// Store is safe for concurrent use. Its lock is never held across an API
// call, so a second mutation may start while the first is in flight.
type Store struct {
	api            API
	logger         *log.Logger
	onChange       func([]domain.Task)
	onUnauthorized func(context.Context)

	mu     sync.Mutex
	tasks  []domain.Task
	banner string
}

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// OnChange registers fn to receive a snapshot after every change to the list.
func OnChange(fn func([]domain.Task)) Option {
	return func(s *Store) { s.onChange = fn }
}

// OnUnauthorized registers fn to run when the API answers 401.
func OnUnauthorized(fn func(context.Context)) Option {
	return func(s *Store) { s.onUnauthorized = fn }
}

// NewStore creates an empty Store.
func NewStore(api API, opts ...Option) *Store {
	s := &Store{api: api, logger: log.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tasks returns a copy of the current list.
func (s *Store) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Stats returns statistics for the current list.
func (s *Store) Stats() domain.TaskStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CalculateStats(s.tasks)
}

// Visible returns the current tasks matching filter and query.
func (s *Store) Visible(filter domain.FilterState, query string) []domain.Task {
	return Filter(s.Tasks(), filter, query)
}

// Banner returns the message of the last failed operation, if any.
func (s *Store) Banner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banner
}

// DismissBanner clears the error banner.
func (s *Store) DismissBanner() {
	s.mu.Lock()
	s.banner = ""
	s.mu.Unlock()
}

// Load replaces the list with the server's. On failure the list is kept.
func (s *Store) Load(ctx context.Context) error {
	list, err := s.api.ListTodos(ctx)
	if err != nil {
		return s.fail(ctx, MessageLoadFailed, ErrLoadFailed, err, log.Fields{})
	}
	s.mu.Lock()
	s.tasks = append([]domain.Task(nil), list...)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

// Create sends a new task and prepends the server record once confirmed.
func (s *Store) Create(ctx context.Context, title, description string) (domain.Task, error) {
	if strings.TrimSpace(title) == "" {
		return domain.Task{}, ErrEmptyTitle
	}
	s.DismissBanner()

	created, err := s.api.CreateTodo(ctx, domain.NewTask{Title: title, Description: description})
	if err != nil {
		return domain.Task{}, s.fail(ctx, MessageCreateFailed, ErrCreateFailed, err, log.Fields{"title": title})
	}
	s.mu.Lock()
	s.tasks = append([]domain.Task{created}, s.tasks...)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return created, nil
}

// Toggle flips the completion flag of task id immediately, then asks the
// API to persist it. If the request fails the flag is restored to its value
// before this call. Concurrent toggles of one id are not coalesced.
func (s *Store) Toggle(ctx context.Context, id int64) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	prev := s.tasks[i].Completed
	s.tasks[i].Completed = !prev
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	want := !prev
	if _, err := s.api.UpdateTodo(ctx, id, domain.TaskUpdate{Completed: &want}); err != nil {
		s.mu.Lock()
		if j := s.indexLocked(id); j >= 0 {
			s.tasks[j].Completed = prev
		}
		snap = s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return s.fail(ctx, MessageUpdateFailed, ErrUpdateFailed, err, log.Fields{"task_id": id, "rolled_back_to": prev})
	}
	return nil
}

// Delete removes task id once the API confirms. The task stays listed
// while the request is pending and after a failure.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.api.DeleteTodo(ctx, id); err != nil {
		return s.fail(ctx, MessageDeleteFailed, ErrDeleteFailed, err, log.Fields{"task_id": id})
	}
	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

func (s *Store) fail(ctx context.Context, message string, kind, cause error, fields log.Fields) error {
	s.mu.Lock()
	s.banner = message
	s.mu.Unlock()

	fields["error"] = cause.Error()
	s.logger.WithFields(fields).Warn(message)

	if s.onUnauthorized != nil && errors.Is(cause, apiclient.ErrUnauthorized) {
		s.onUnauthorized(ctx)
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

func (s *Store) indexLocked(id int64) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() []domain.Task {
	return append([]domain.Task(nil), s.tasks...)
}

func (s *Store) notify(snap []domain.Task) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
