package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestIgnoreInternal(t *testing.T) {
	tests := map[string]bool{
		"/h/tasks/001-water-plants.md": false,
		"/h/pending.jsonl":             false,
		"/h/pending.jsonl.lock":        true,
		"/h/pending.jsonl.drain":       true,
		"/h/tasks/.lock":               true,
		"/h/tasks/.tmp-123":            true,
		"/h/tasks/001.md.tmp":          true,
	}
	for name, want := range tests {
		if got := IgnoreInternal(name); got != want {
			t.Errorf("IgnoreInternal(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestWatcherDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	fired := make(chan struct{}, 10)
	w, err := New([]string{dir}, func() {
		calls.Add(1)
		fired <- struct{}{}
	}, WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, nil)

	// Lock files alone never trigger a refresh.
	if err := os.WriteFile(filepath.Join(dir, ".lock"), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	for i := range 3 {
		name := filepath.Join(dir, "00"+string(rune('1'+i))+"-task.md")
		if err := os.WriteFile(name, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
	}
	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("callback fired %d times, want 1", n)
	}
}
