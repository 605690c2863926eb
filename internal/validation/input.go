// Package validation checks caller-supplied identifiers and free-form input.
package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Input limits
const (
	MaxUserIDLength      = 128
	MaxHabitNameLength   = 100
	MaxMetadataEntries   = 20
	MaxMetadataKeyLength = 64
	MaxMetadataValueLen  = 512
)

// ValidateUserID validates a caller identity as set by the gateway
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if len(userID) > MaxUserIDLength {
		return fmt.Errorf("user id must be at most %d characters", MaxUserIDLength)
	}
	if !utf8.ValidString(userID) {
		return fmt.Errorf("user id must be valid UTF-8")
	}
	if strings.IndexFunc(userID, unicode.IsControl) >= 0 {
		return fmt.Errorf("user id must not contain control characters")
	}
	return nil
}

// ValidateHabitName validates a habit's display name
func ValidateHabitName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("habit name is required")
	}
	if utf8.RuneCountInString(name) > MaxHabitNameLength {
		return fmt.Errorf("habit name must be at most %d characters", MaxHabitNameLength)
	}
	return nil
}

// ValidateEventMetadata bounds the free-form metadata attached to an event
func ValidateEventMetadata(metadata map[string]string) error {
	if len(metadata) > MaxMetadataEntries {
		return fmt.Errorf("metadata must have at most %d entries", MaxMetadataEntries)
	}
	for k, v := range metadata {
		if k == "" || len(k) > MaxMetadataKeyLength {
			return fmt.Errorf("metadata keys must be 1 to %d characters", MaxMetadataKeyLength)
		}
		if len(v) > MaxMetadataValueLen {
			return fmt.Errorf("metadata value for %q must be at most %d characters", k, MaxMetadataValueLen)
		}
	}
	return nil
}
