package tasks

import (
	"math/rand"
	"testing"

	"todo-client/domain"
)

func strPtr(s string) *string { return &s }

func TestCalculateStatsEmpty(t *testing.T) {
	if got := CalculateStats(nil); got != (domain.TaskStatistics{}) {
		t.Fatalf("expected zero stats, got %#v", got)
	}
}

func TestCalculateStatsInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 50; n++ {
		list := make([]domain.Task, rng.Intn(20))
		for i := range list {
			list[i] = domain.Task{ID: int64(i + 1), Completed: rng.Intn(2) == 0}
		}
		s := CalculateStats(list)
		if s.Total != len(list) || s.Total != s.Active+s.Completed {
			t.Fatalf("invariant broken for %d tasks: %#v", len(list), s)
		}
	}
}

func TestFilter(t *testing.T) {
	list := []domain.Task{
		{ID: 1, Title: "Buy Honey", Completed: false},
		{ID: 2, Title: "Nap", Description: strPtr("in the CAVE"), Completed: true},
		{ID: 3, Title: "Fish salmon", Description: nil, Completed: false},
	}
	tests := []struct {
		name   string
		filter domain.FilterState
		query  string
		want   []int64
	}{
		{name: "all", filter: domain.FilterAll, want: []int64{1, 2, 3}},
		{name: "active", filter: domain.FilterActive, want: []int64{1, 3}},
		{name: "completed", filter: domain.FilterCompleted, want: []int64{2}},
		{name: "title case-insensitive", filter: domain.FilterAll, query: "honey", want: []int64{1}},
		{name: "description match", filter: domain.FilterAll, query: "cave", want: []int64{2}},
		{name: "query and state", filter: domain.FilterActive, query: "cave", want: nil},
		{name: "no match", filter: domain.FilterAll, query: "zzz", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(list, tt.filter, tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d tasks, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Fatalf("position %d: got id %d, want %d", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
	if len(list) != 3 || list[0].ID != 1 {
		t.Fatalf("filter must not modify its input")
	}
}
