package clierr

import (
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{TaskNotFound, 1},
		{ValidationError, 1},
		{InvalidTransition, 1},
		{StorageError, 2},
		{InternalError, 2},
	}
	for _, tt := range tests {
		if got := New(tt.code, "x").ExitCode(); got != tt.want {
			t.Errorf("ExitCode(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestHasCodeUnwraps(t *testing.T) {
	base := Newf(InvalidOperation, "cannot postpone task #%d", 4)
	wrapped := fmt.Errorf("postponing: %w", base)

	if !HasCode(wrapped, InvalidOperation) {
		t.Error("expected wrapped error to carry INVALID_OPERATION")
	}
	if HasCode(wrapped, ValidationError) {
		t.Error("unexpected VALIDATION_ERROR match")
	}
	if HasCode(fmt.Errorf("plain"), InvalidOperation) {
		t.Error("plain error must not match")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ValidationError, "bad").WithDetails(map[string]any{"field": "name"})
	if err.Details["field"] != "name" {
		t.Errorf("details = %v", err.Details)
	}
	if err.Error() != "bad" {
		t.Errorf("Error() = %q", err.Error())
	}
}
