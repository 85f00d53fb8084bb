package activity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecordAndTail(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), FileName))
	l.Record(ActionAdd, 1, "Water plants")
	l.Recordf(ActionQueued, -1, "add %q", "Dust shelves")
	l.Record(ActionSync, 0, "applied 1, remaining 0")

	all, err := l.Tail(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[1].Action != ActionQueued || all[1].TaskID != -1 || all[1].Detail != `add "Dust shelves"` {
		t.Errorf("entry = %+v", all[1])
	}

	last, err := l.Tail(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(last) != 1 || last[0].Action != ActionSync {
		t.Errorf("Tail(1) = %+v", last)
	}
}

func TestTailMissingFile(t *testing.T) {
	entries, err := New(filepath.Join(t.TempDir(), "none.jsonl")).Tail(10)
	if err != nil || len(entries) != 0 {
		t.Errorf("Tail = %v, %v", entries, err)
	}
}

func TestNilLogIsNoop(t *testing.T) {
	var l *Log
	l.Record(ActionAdd, 1, "x")
	if err := l.Append(Entry{}); err != nil {
		t.Error(err)
	}
	if entries, err := l.Tail(5); err != nil || entries != nil {
		t.Errorf("Tail = %v, %v", entries, err)
	}
}

func TestTruncatesOldestEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	var b strings.Builder
	for i := range maxLogEntries {
		fmt.Fprintf(&b, `{"timestamp":"2026-01-01T00:00:00Z","action":"add","task_id":%d,"detail":"x"}`+"\n", i+1)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}

	l := New(path)
	l.Record(ActionDelete, 99999, "newest")

	entries, err := l.Tail(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != maxLogEntries {
		t.Fatalf("len = %d, want %d", len(entries), maxLogEntries)
	}
	if entries[0].TaskID != 2 || entries[len(entries)-1].TaskID != 99999 {
		t.Errorf("first=%d last=%d", entries[0].TaskID, entries[len(entries)-1].TaskID)
	}
}
