package task

import (
	"strings"
	"unicode/utf8"

	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
)

// Field limits shared by every backend.
const (
	MinPriority   = 1
	MaxPriority   = 5
	MaxNameLength = 100
)

// Validate checks the invariants every stored task must satisfy.
// It runs before a write is attempted or queued.
func Validate(t *Task) error {
	if strings.TrimSpace(t.Name) == "" {
		return invalidField("name", t.Name, "task name is required")
	}
	if utf8.RuneCountInString(t.Name) > MaxNameLength {
		return invalidField("name", t.Name, "task name exceeds 100 characters")
	}
	if err := ValidatePriority(t.Priority); err != nil {
		return err
	}
	if t.Status == "" {
		return invalidField("status", "", "task status is required")
	}
	if !t.Status.IsValid() {
		return invalidField("status", string(t.Status), "invalid status "+string(t.Status))
	}
	return nil
}

// ValidatePriority checks that a priority is within 1..5.
func ValidatePriority(priority int) error {
	if priority < MinPriority || priority > MaxPriority {
		return clierr.Newf(clierr.ValidationError,
			"priority must be between %d and %d, got %d", MinPriority, MaxPriority, priority).
			WithDetails(map[string]any{
				"field": "priority",
				"value": priority,
				"min":   MinPriority,
				"max":   MaxPriority,
			})
	}
	return nil
}

// ValidateDate returns a CLIError for invalid date input.
func ValidateDate(field, input string, err error) *clierr.Error {
	return clierr.Newf(clierr.InvalidDate, "invalid %s date: %v", field, err).
		WithDetails(map[string]any{
			"field": field,
			"input": input,
		})
}

// ValidateTaskID returns a CLIError for invalid task ID input.
func ValidateTaskID(input string) *clierr.Error {
	return clierr.Newf(clierr.InvalidTaskID, "invalid task ID %q", input).
		WithDetails(map[string]any{"input": input})
}

// IsValidationError reports whether err is a field validation failure.
func IsValidationError(err error) bool {
	return clierr.HasCode(err, clierr.ValidationError)
}

func invalidField(field string, value any, msg string) *clierr.Error {
	return clierr.New(clierr.ValidationError, msg).
		WithDetails(map[string]any{
			"field": field,
			"value": value,
		})
}
