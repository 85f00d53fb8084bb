// Package activity keeps a best-effort JSONL history of task mutations,
// sync runs and sweeps.
package activity

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	// FileName is the activity log name inside the data directory.
	FileName = "activity.jsonl"

	logFileMode   = 0o600
	maxLogEntries = 10000 // truncate oldest entries when log exceeds this size
)

// Actions recorded in the log.
const (
	ActionAdd    = "add"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionStatus = "status"
	ActionQueued = "queued"
	ActionSync   = "sync"
	ActionSweep  = "sweep"
)

// Entry is a single activity log line.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	TaskID    int       `json:"task_id,omitempty"`
	Detail    string    `json:"detail"`
}

// Log appends entries to a file. A nil *Log discards everything.
type Log struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// New returns a Log writing to path.
func New(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Append writes entry. If the log exceeds maxLogEntries, the oldest entries
// are truncated.
func (l *Log) Append(entry Entry) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling log entry: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFileMode) //nolint:gosec // log path from config
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing log entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	// Truncation is best-effort.
	_ = l.truncateIfNeeded()
	return nil
}

// Record appends an entry stamped with the current time. Errors are
// discarded because history must never fail a command.
func (l *Log) Record(action string, taskID int, detail string) {
	if l == nil {
		return
	}
	_ = l.Append(Entry{
		Timestamp: l.now(),
		Action:    action,
		TaskID:    taskID,
		Detail:    detail,
	})
}

// Recordf is Record with a formatted detail.
func (l *Log) Recordf(action string, taskID int, format string, args ...any) {
	l.Record(action, taskID, fmt.Sprintf(format, args...))
}

// Tail returns the last n entries, oldest first. n <= 0 returns all entries.
// Lines that fail to parse are skipped.
func (l *Log) Tail(n int) ([]Entry, error) {
	if l == nil {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := readLines(l.path)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		var e Entry
		if json.Unmarshal([]byte(line), &e) == nil {
			entries = append(entries, e)
		}
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// truncateIfNeeded rewrites the log keeping only the newest maxLogEntries lines.
func (l *Log) truncateIfNeeded() error {
	lines, err := readLines(l.path)
	if err != nil {
		return err
	}
	if len(lines) <= maxLogEntries {
		return nil
	}
	lines = lines[len(lines)-maxLogEntries:]

	var buf strings.Builder
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return os.WriteFile(l.path, []byte(buf.String()), logFileMode)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // trusted path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
