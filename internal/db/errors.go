package db

import "errors"

// Sentinel errors for type-safe error checking
// Use errors.Is() instead of string comparison
var (
	ErrHabitNotFound = errors.New("habit not found")
	ErrInvalidEvent  = errors.New("invalid event")
	ErrInvalidSample = errors.New("invalid fitness sample")
)
