package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EventType is the kind of lifecycle event recorded for a task.
type EventType string

const (
	EventViewed    EventType = "VIEWED"
	EventStarted   EventType = "STARTED"
	EventCompleted EventType = "COMPLETED"
	EventSkipped   EventType = "SKIPPED"
)

// ParseEventType validates an event type string (case-insensitive).
func ParseEventType(s string) (EventType, error) {
	switch et := EventType(strings.ToUpper(strings.TrimSpace(s))); et {
	case EventViewed, EventStarted, EventCompleted, EventSkipped:
		return et, nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

// CompletionEvent is one immutable lifecycle event for a task.
type CompletionEvent struct {
	ID        string            `json:"id"`
	TaskID    int64             `json:"task_id"`
	UserID    string            `json:"user_id"`
	EventType EventType         `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Habit is the task metadata owned by the surrounding application.
type Habit struct {
	ID          int64      `json:"id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Color       string     `json:"color,omitempty"`
	IsDeleted   bool       `json:"is_deleted"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// FitnessDataType identifies a fitness metric series.
type FitnessDataType string

const (
	FitnessSteps          FitnessDataType = "STEPS"
	FitnessCaloriesBurned FitnessDataType = "CALORIES_BURNED"
)

// ParseFitnessDataType validates a fitness data type string (case-insensitive).
func ParseFitnessDataType(s string) (FitnessDataType, error) {
	switch dt := FitnessDataType(strings.ToUpper(strings.TrimSpace(s))); dt {
	case FitnessSteps, FitnessCaloriesBurned:
		return dt, nil
	default:
		return "", fmt.Errorf("unknown fitness data type %q", s)
	}
}

// FitnessSample is one day's value of a fitness metric for a user.
// Date is a calendar date stored as midnight UTC.
type FitnessSample struct {
	UserID   string          `json:"user_id"`
	Date     time.Time       `json:"date"`
	DataType FitnessDataType `json:"data_type"`
	Value    decimal.Decimal `json:"value"`
}
