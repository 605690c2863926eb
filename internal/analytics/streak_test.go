package analytics

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"
)

func TestStreaks_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		completions []time.Time
		asOf        time.Time
		wantCurrent int
		wantLongest int
	}{
		{
			name:        "three consecutive days",
			completions: []time.Time{at(2024, 1, 1, 8, 0), at(2024, 1, 2, 8, 0), at(2024, 1, 3, 8, 0)},
			asOf:        at(2024, 1, 3, 20, 0),
			wantCurrent: 3,
			wantLongest: 3,
		},
		{
			name: "gap then three days",
			completions: []time.Time{
				at(2024, 1, 1, 8, 0), at(2024, 1, 2, 8, 0),
				at(2024, 1, 5, 8, 0), at(2024, 1, 6, 8, 0), at(2024, 1, 7, 8, 0),
			},
			asOf:        at(2024, 1, 7, 20, 0),
			wantCurrent: 3,
			wantLongest: 3,
		},
		{
			name:        "single completion five days ago",
			completions: []time.Time{at(2024, 1, 1, 8, 0)},
			asOf:        at(2024, 1, 6, 8, 0),
			wantCurrent: 0,
			wantLongest: 1,
		},
		{
			name:        "streak ending yesterday still counts",
			completions: []time.Time{at(2024, 1, 1, 8, 0), at(2024, 1, 2, 8, 0)},
			asOf:        at(2024, 1, 3, 7, 0),
			wantCurrent: 2,
			wantLongest: 2,
		},
		{
			name:        "several completions on one day count once",
			completions: []time.Time{at(2024, 1, 2, 7, 0), at(2024, 1, 2, 9, 0), at(2024, 1, 2, 23, 0)},
			asOf:        at(2024, 1, 2, 23, 30),
			wantCurrent: 1,
			wantLongest: 1,
		},
		{
			name:        "completions after asOf are ignored for the current streak",
			completions: []time.Time{at(2024, 1, 1, 8, 0), at(2024, 1, 2, 8, 0), at(2024, 1, 9, 8, 0)},
			asOf:        at(2024, 1, 2, 12, 0),
			wantCurrent: 2,
			wantLongest: 2,
		},
		{
			name:        "no completions",
			completions: nil,
			asOf:        at(2024, 1, 2, 12, 0),
			wantCurrent: 0,
			wantLongest: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, err := CurrentStreak(tt.completions, tt.asOf, time.UTC)
			if err != nil {
				t.Fatalf("CurrentStreak: %v", err)
			}
			longest, err := LongestStreak(tt.completions, time.UTC)
			if err != nil {
				t.Fatalf("LongestStreak: %v", err)
			}
			if current != tt.wantCurrent {
				t.Errorf("current = %d, want %d", current, tt.wantCurrent)
			}
			if longest != tt.wantLongest {
				t.Errorf("longest = %d, want %d", longest, tt.wantLongest)
			}
		})
	}
}

func TestStreaks_OrderIndependent(t *testing.T) {
	completions := []time.Time{
		at(2024, 1, 3, 8, 0), at(2024, 1, 1, 8, 0), at(2024, 1, 2, 8, 0), at(2024, 1, 2, 9, 0),
	}
	current, _ := CurrentStreak(completions, at(2024, 1, 3, 12, 0), time.UTC)
	longest, _ := LongestStreak(completions, time.UTC)
	if current != 3 || longest != 3 {
		t.Errorf("current=%d longest=%d, want 3 and 3", current, longest)
	}
}

func TestStreaks_TimeZoneShiftsDays(t *testing.T) {
	la, err := LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 03:00 UTC on Jan 2 and Jan 3 are the evenings of Jan 1 and Jan 2 in LA.
	completions := []time.Time{at(2024, 1, 2, 3, 0), at(2024, 1, 3, 3, 0)}
	asOf := at(2024, 1, 3, 20, 0) // Jan 3 noon in LA

	utc, _ := CurrentStreak(completions, asOf, time.UTC)
	local, _ := CurrentStreak(completions, asOf, la)
	if utc != 2 {
		t.Errorf("UTC current = %d, want 2", utc)
	}
	if local != 2 {
		t.Errorf("LA current = %d, want 2 (Jan 1 and Jan 2, ending yesterday)", local)
	}

	asOf = at(2024, 1, 4, 10, 0) // Jan 4 02:00 in LA
	utc, _ = CurrentStreak(completions, asOf, time.UTC)
	local, _ = CurrentStreak(completions, asOf, la)
	if utc != 2 {
		t.Errorf("UTC current = %d, want 2", utc)
	}
	if local != 0 {
		t.Errorf("LA current = %d, want 0 (last completion Jan 2 is two days back)", local)
	}
}

func TestStreaks_LongestAtLeastCurrent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	base := at(2024, 1, 1, 0, 0)

	for i := 0; i < 200; i++ {
		var completions []time.Time
		for d := 0; d < 60; d++ {
			if rng.IntN(3) > 0 {
				completions = append(completions, base.AddDate(0, 0, d).Add(time.Duration(rng.IntN(24))*time.Hour))
			}
		}
		asOf := base.AddDate(0, 0, rng.IntN(70))

		current, err := CurrentStreak(completions, asOf, time.UTC)
		if err != nil {
			t.Fatal(err)
		}
		longest, err := LongestStreak(completions, time.UTC)
		if err != nil {
			t.Fatal(err)
		}
		if longest < current {
			t.Fatalf("iteration %d: longest %d < current %d", i, longest, current)
		}
	}
}

func TestCurrentStreak_Monotonic(t *testing.T) {
	completions := []time.Time{at(2024, 1, 1, 8, 0), at(2024, 1, 2, 8, 0)}
	asOf := at(2024, 1, 3, 12, 0)

	before, _ := CurrentStreak(completions, asOf, time.UTC)
	after, _ := CurrentStreak(append(completions, at(2024, 1, 3, 9, 0)), asOf, time.UTC)
	if after < before {
		t.Errorf("adding a completion on asOf lowered the streak: %d -> %d", before, after)
	}
	if after != 3 {
		t.Errorf("after = %d, want 3", after)
	}
}

func TestStreaks_InvalidTimestamp(t *testing.T) {
	bad := []time.Time{time.Unix(-10, 0)}
	if _, err := CurrentStreak(bad, at(2024, 1, 1, 0, 0), time.UTC); !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("CurrentStreak err = %v, want ErrInvalidTimestamp", err)
	}
	if _, err := LongestStreak(bad, time.UTC); !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("LongestStreak err = %v, want ErrInvalidTimestamp", err)
	}
	if _, err := CurrentStreak(nil, time.Unix(-1, 0), time.UTC); !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("negative asOf err = %v, want ErrInvalidTimestamp", err)
	}
}

func TestAllHabitsCurrentStreak(t *testing.T) {
	asOf := at(2024, 1, 5, 20, 0)
	run := []time.Time{at(2024, 1, 3, 8, 0), at(2024, 1, 4, 8, 0), at(2024, 1, 5, 8, 0)}

	tests := []struct {
		name  string
		tasks map[int64][]time.Time
		want  int
	}{
		{"no tasks", map[int64][]time.Time{}, 0},
		{"single task matches any-completion streak", map[int64][]time.Time{1: run}, 3},
		{
			name: "every task every day",
			tasks: map[int64][]time.Time{
				1: run,
				2: {at(2024, 1, 3, 21, 0), at(2024, 1, 4, 6, 0), at(2024, 1, 5, 12, 0)},
			},
			want: 3,
		},
		{
			name: "one task missed a middle day",
			tasks: map[int64][]time.Time{
				1: run,
				2: {at(2024, 1, 3, 21, 0), at(2024, 1, 5, 12, 0)},
			},
			want: 1,
		},
		{
			name: "today incomplete falls back to yesterday",
			tasks: map[int64][]time.Time{
				1: run,
				2: {at(2024, 1, 3, 21, 0), at(2024, 1, 4, 6, 0)},
			},
			want: 2,
		},
		{
			name: "task with no completions breaks everything",
			tasks: map[int64][]time.Time{
				1: run,
				2: nil,
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AllHabitsCurrentStreak(tt.tasks, asOf, time.UTC)
			if err != nil {
				t.Fatalf("AllHabitsCurrentStreak: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAllHabitsVsAnyCompletionPolicies(t *testing.T) {
	asOf := at(2024, 1, 3, 20, 0)
	tasks := map[int64][]time.Time{
		1: {at(2024, 1, 1, 8, 0), at(2024, 1, 2, 8, 0), at(2024, 1, 3, 8, 0)},
		2: {at(2024, 1, 3, 8, 0)},
	}

	all, err := AllHabitsCurrentStreak(tasks, asOf, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	anyCompletion, err := CurrentStreak(tasks[1], asOf, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if all != 1 {
		t.Errorf("all-habits streak = %d, want 1", all)
	}
	if anyCompletion != 3 {
		t.Errorf("any-completion streak of task 1 = %d, want 3", anyCompletion)
	}
}
