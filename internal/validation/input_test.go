package validation

import (
	"fmt"
	"strings"
	"testing"
)

func TestValidateUserID(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		wantErr bool
	}{
		{name: "simple id", userID: "user-123", wantErr: false},
		{name: "uuid", userID: "0b6f8f5e-3c1e-4c4f-9a55-2f7a8d1e9c10", wantErr: false},
		{name: "unicode", userID: "josé", wantErr: false},
		{name: "max length", userID: strings.Repeat("a", MaxUserIDLength), wantErr: false},
		{name: "empty", userID: "", wantErr: true},
		{name: "too long", userID: strings.Repeat("a", MaxUserIDLength+1), wantErr: true},
		{name: "invalid utf8", userID: "bad\xff", wantErr: true},
		{name: "newline", userID: "user\nadmin", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserID(tt.userID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUserID(%q) error = %v, wantErr %v", tt.userID, err, tt.wantErr)
			}
		})
	}
}

func TestValidateHabitName(t *testing.T) {
	tests := []struct {
		name      string
		habitName string
		wantErr   bool
	}{
		{name: "simple", habitName: "Read 20 pages", wantErr: false},
		{name: "max runes", habitName: strings.Repeat("é", MaxHabitNameLength), wantErr: false},
		{name: "blank", habitName: "   ", wantErr: true},
		{name: "too long", habitName: strings.Repeat("x", MaxHabitNameLength+1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHabitName(tt.habitName)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHabitName(%q) error = %v, wantErr %v", tt.habitName, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEventMetadata(t *testing.T) {
	tooMany := make(map[string]string)
	for i := range MaxMetadataEntries + 1 {
		tooMany[fmt.Sprintf("k%d", i)] = "v"
	}

	tests := []struct {
		name     string
		metadata map[string]string
		wantErr  bool
	}{
		{name: "nil", metadata: nil, wantErr: false},
		{name: "small", metadata: map[string]string{"source": "widget"}, wantErr: false},
		{name: "too many entries", metadata: tooMany, wantErr: true},
		{name: "empty key", metadata: map[string]string{"": "v"}, wantErr: true},
		{name: "long key", metadata: map[string]string{strings.Repeat("k", MaxMetadataKeyLength+1): "v"}, wantErr: true},
		{name: "long value", metadata: map[string]string{"note": strings.Repeat("v", MaxMetadataValueLen+1)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEventMetadata(tt.metadata)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEventMetadata() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
