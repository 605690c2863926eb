package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ConfabulousDev/habitstat/internal/models"
)

var errBoom = errors.New("boom")

type fakeEvents struct {
	mu     sync.Mutex
	events []models.CompletionEvent
	err    error
	// failTask, when non-zero, fails fetches for that task only.
	failTask int64
	calls    atomic.Int32
	// gate, when set, blocks FetchEvents until closed or ctx ends.
	gate chan struct{}
	// entered, when set, receives once per call that reaches the gate.
	entered chan struct{}
}

func (f *fakeEvents) FetchEvents(ctx context.Context, userID string, taskID *int64, start, end time.Time) ([]models.CompletionEvent, error) {
	f.calls.Add(1)
	if f.gate != nil {
		if f.entered != nil {
			f.entered <- struct{}{}
		}
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if taskID != nil && f.failTask != 0 && *taskID == f.failTask {
		return nil, errBoom
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CompletionEvent
	for _, e := range f.events {
		if e.UserID != userID || (taskID != nil && e.TaskID != *taskID) {
			continue
		}
		if e.Timestamp.Before(start) || !e.Timestamp.Before(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEvents) add(userID string, taskID int64, eventType models.EventType, timestamps ...time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ts := range timestamps {
		f.events = append(f.events, models.CompletionEvent{
			TaskID:    taskID,
			UserID:    userID,
			EventType: eventType,
			Timestamp: ts,
		})
	}
}

type storeKey struct {
	taskID   int64
	rangeKey string
}

type memStore struct {
	mu      sync.Mutex
	records map[storeKey]TaskAnalytics
	puts    atomic.Int32
	gets    atomic.Int32
	getErr  error
	putErr  error
	listErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[storeKey]TaskAnalytics)}
}

func (s *memStore) GetAnalytics(ctx context.Context, taskID int64, rangeKey string) (*TaskAnalytics, error) {
	s.gets.Add(1)
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[storeKey{taskID, rangeKey}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *memStore) PutAnalytics(ctx context.Context, record *TaskAnalytics) error {
	s.puts.Add(1)
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[storeKey{record.TaskID, record.RangeKey()}] = *record
	return nil
}

func (s *memStore) ListAnalytics(ctx context.Context, userID string) ([]TaskAnalytics, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TaskAnalytics
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeTasks struct {
	habits []models.Habit
	err    error
}

func (f *fakeTasks) ListTasks(ctx context.Context, userID string, includeDeleted bool) ([]models.Habit, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Habit
	for _, h := range f.habits {
		if h.UserID != userID || (h.IsDeleted && !includeDeleted) {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

type fakeFitness struct {
	samples []models.FitnessSample
	err     error
}

func (f *fakeFitness) FetchFitnessSamples(ctx context.Context, userID string, r DateRange) ([]models.FitnessSample, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.samples, nil
}

// fixedClock returns a clock that always reports t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func mustRange(start, end time.Time) DateRange {
	r, err := NewDateRange(start, end)
	if err != nil {
		panic(err)
	}
	return r
}
