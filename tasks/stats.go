package tasks

import (
	"strings"

	"todo-client/domain"
)

// CalculateStats counts tasks. Active is always Total minus Completed.
func CalculateStats(list []domain.Task) domain.TaskStatistics {
	completed := 0
	for _, t := range list {
		if t.Completed {
			completed++
		}
	}
	return domain.TaskStatistics{
		Total:     len(list),
		Active:    len(list) - completed,
		Completed: completed,
	}
}

// Matches reports whether t is visible under filter and a case-insensitive
// search of its title and description.
func Matches(t domain.Task, filter domain.FilterState, query string) bool {
	switch filter {
	case domain.FilterActive:
		if t.Completed {
			return false
		}
	case domain.FilterCompleted:
		if !t.Completed {
			return false
		}
	}
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(t.Title), q) ||
		strings.Contains(strings.ToLower(t.DescriptionText()), q)
}

// Filter returns the tasks of list that match, preserving order. list is
// not modified.
func Filter(list []domain.Task, filter domain.FilterState, query string) []domain.Task {
	out := make([]domain.Task, 0, len(list))
	for _, t := range list {
		if Matches(t, filter, query) {
			out = append(out, t)
		}
	}
	return out
}
