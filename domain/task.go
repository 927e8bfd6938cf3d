package domain

// Task represents a single todo item as returned by the remote API.
type Task struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Completed   bool    `json:"completed"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// DescriptionText returns the description or an empty string when absent.
func (t Task) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// NewTask is the payload used to create a task.
type NewTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// TaskUpdate carries the fields changed by an update request.
type TaskUpdate struct {
	Completed *bool `json:"completed,omitempty"`
}

// TaskStatistics summarises a task collection.
type TaskStatistics struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}

// FilterState selects which tasks are visible.
type FilterState string

const (
	FilterAll       FilterState = "all"
	FilterActive    FilterState = "active"
	FilterCompleted FilterState = "completed"
)

// ParseFilterState maps user input to a FilterState. Unknown values are rejected.
func ParseFilterState(s string) (FilterState, bool) {
	switch FilterState(s) {
	case FilterAll, FilterActive, FilterCompleted:
		return FilterState(s), true
	case "":
		return FilterAll, true
	}
	return "", false
}
