package filestore

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/store"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

var fixedNow = time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "tasks")
	if err := Init(dir); err != nil {
		t.Fatal(err)
	}
	return New(dir, WithClock(func() time.Time { return fixedNow })), dir
}

func TestAddAssignsSequentialIDsAndFilenames(t *testing.T) {
	ctx := context.Background()
	s, dir := newStore(t)

	a, err := s.Add(ctx, task.New("Clean the Oven!", 3))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Add(ctx, task.New("Water plants", 2))
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("ids = %d, %d", a.ID, b.ID)
	}
	for _, name := range []string{"001-clean-the-oven.md", "002-water-plants.md"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestUpdateRenamesFile(t *testing.T) {
	ctx := context.Background()
	s, dir := newStore(t)

	added, err := s.Add(ctx, task.New("Dust shelves", 1))
	if err != nil {
		t.Fatal(err)
	}
	added.Name = "Dust bookshelves"
	added.Description = "Top shelf needs a ladder."
	if err := s.Update(ctx, added); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "001-dust-shelves.md")); !os.IsNotExist(err) {
		t.Errorf("old file still present: %v", err)
	}
	got, err := s.GetByID(ctx, added.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Dust bookshelves" || got.Description != "Top shelf needs a ladder." {
		t.Errorf("got %+v", got)
	}
}

func TestSetStatusAndDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	added, err := s.Add(ctx, task.New("Take out trash", 4))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetStatus(ctx, added.ID, task.Completed); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetByID(ctx, added.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != task.Completed || got.LastCompleted == nil || *got.LastCompleted != date.FromTime(fixedNow) {
		t.Errorf("got %+v", got)
	}

	if err := s.Delete(ctx, added.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetByID(ctx, added.ID); !store.IsNotFound(err) {
		t.Errorf("GetByID after delete err = %v", err)
	}
	if err := s.Delete(ctx, added.ID); !store.IsNotFound(err) || store.IsTransient(err) {
		t.Errorf("second Delete err = %v", err)
	}
}

func TestGetAllSkipsMalformedFiles(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "tasks")
	if err := Init(dir); err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	s := New(dir, WithLogger(log.New(&logs, "", 0)))

	if _, err := s.Add(ctx, task.New("Good", 3)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "002-broken.md"), []byte("no frontmatter"), 0o600); err != nil {
		t.Fatal(err)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Name != "Good" {
		t.Errorf("GetAll = %+v", all)
	}
	if !bytes.Contains(logs.Bytes(), []byte("002-broken.md")) {
		t.Errorf("expected warning for broken file, got %q", logs.String())
	}

	// The broken file still reserves its ID.
	next, err := s.Add(ctx, task.New("Next", 3))
	if err != nil {
		t.Fatal(err)
	}
	if next.ID != 3 {
		t.Errorf("next ID = %d, want 3", next.ID)
	}
}

func TestMissingDirectoryIsTransient(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "unmounted"))

	_, err := s.GetAll(ctx)
	if !store.IsTransient(err) {
		t.Fatalf("GetAll err = %v, want transient", err)
	}
	if err := s.Ping(ctx); !store.IsTransient(err) {
		t.Errorf("Ping err = %v, want transient", err)
	}
}

func TestAddRejectsInvalidTask(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Add(context.Background(), task.New("", 3))
	if !task.IsValidationError(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateFilename(t *testing.T) {
	tests := []struct {
		id   int
		name string
		want string
	}{
		{1, "Water plants", "001-water-plants.md"},
		{1234, "Fix sink", "1234-fix-sink.md"},
		{5, "???", "005-task.md"},
		{6, "Ölwechsel Auto", "006-lwechsel-auto.md"},
	}
	for _, tt := range tests {
		if got := generateFilename(tt.id, tt.name); got != tt.want {
			t.Errorf("generateFilename(%d, %q) = %q, want %q", tt.id, tt.name, got, tt.want)
		}
	}
}
