package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/syncer"
)

// JSON writes data as indented JSON to the given writer.
func JSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// ErrorResponse is the JSON envelope for structured error output, shared by
// the CLI and the HTTP API.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorFor builds the envelope for err. Errors without a code are reported
// as INTERNAL_ERROR.
func ErrorFor(err error) ErrorResponse {
	var cliErr *clierr.Error
	if errors.As(err, &cliErr) {
		return ErrorResponse{Error: cliErr.Message, Code: cliErr.Code, Details: cliErr.Details}
	}
	return ErrorResponse{Error: err.Error(), Code: clierr.InternalError}
}

// JSONError writes the envelope for err. Write failures are ignored.
func JSONError(w io.Writer, err error) {
	_ = JSON(w, ErrorFor(err))
}

// TaskResult is the outcome for one task of a multi-ID command. Queued
// results carry the task as it will look once synced.
type TaskResult struct {
	ID     int    `json:"id"`
	OK     bool   `json:"ok"`
	Queued bool   `json:"queued,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// ResultFor converts the coordinator's answer for id into a TaskResult.
func ResultFor(id int, out syncer.Outcome, err error) TaskResult {
	if err != nil {
		e := ErrorFor(err)
		return TaskResult{ID: id, Error: e.Error, Code: e.Code}
	}
	return TaskResult{ID: id, OK: true, Queued: out.Queued, Status: string(out.Task.Status)}
}

// Tally counts succeeded results and, of those, the queued ones.
func Tally(results []TaskResult) (ok, queued int) {
	for _, r := range results {
		if !r.OK {
			continue
		}
		ok++
		if r.Queued {
			queued++
		}
	}
	return ok, queued
}
