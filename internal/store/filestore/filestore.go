// Package filestore keeps each task in its own markdown file with YAML
// frontmatter, named NNN-slug.md, inside a tasks directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/filelock"
	"github.com/twiced-technology-gmbh/housekeep/internal/store"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

const (
	dirMode  = 0o750
	fileMode = 0o600
	lockName = ".lock"
)

// Store is a TaskStore over a directory of task files. Calls from other
// processes are serialized with an advisory lock file in the directory.
type Store struct {
	dir    string
	logger *log.Logger
	now    func() time.Time
	today  func() date.Date
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for unreadable task files.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
		s.today = func() date.Date { return date.FromTime(now()) }
	}
}

// New returns a Store for dir. The directory is not created: a missing
// directory (for example an unmounted share) is reported as unavailable.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:    dir,
		logger: log.New(os.Stderr, "housekeep: ", 0),
		now:    time.Now,
		today:  date.Today,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init creates the tasks directory.
func Init(dir string) error {
	return os.MkdirAll(dir, dirMode)
}

// Dir returns the tasks directory.
func (s *Store) Dir() string { return s.dir }

// Ping implements store.Pinger.
func (s *Store) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return s.fail("ping", 0, err)
	}
	if !info.IsDir() {
		return store.Wrap("ping", 0, fmt.Errorf("%s is not a directory", s.dir))
	}
	return nil
}

// GetAll reads every task file. Files that fail to parse are logged and skipped.
func (s *Store) GetAll(ctx context.Context) ([]task.Task, error) {
	var out []task.Task
	err := s.locked(ctx, "get_all", 0, func(files map[int]string) error {
		out = make([]task.Task, 0, len(files))
		for id, path := range files {
			t, err := task.Read(path)
			if err != nil {
				s.logger.Printf("Warning: skipping %s: %v", filepath.Base(path), err)
				continue
			}
			t.ID = id
			out = append(out, *t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b task.Task) int { return a.ID - b.ID })
	return out, nil
}

// GetByID reads a single task.
func (s *Store) GetByID(ctx context.Context, id int) (*task.Task, error) {
	var out *task.Task
	err := s.locked(ctx, "get", id, func(files map[int]string) error {
		path, ok := files[id]
		if !ok {
			return store.NotFound("get", id)
		}
		t, err := task.Read(path)
		if err != nil {
			return err
		}
		t.ID = id
		out = t
		return nil
	})
	return out, err
}

// Add writes a new file with the next free ID.
func (s *Store) Add(ctx context.Context, t task.Task) (task.Task, error) {
	if err := task.Validate(&t); err != nil {
		return task.Task{}, err
	}
	err := s.locked(ctx, "add", 0, func(files map[int]string) error {
		t.ID = 1
		for id := range files {
			if id >= t.ID {
				t.ID = id + 1
			}
		}
		task.UpdateTimestamps(&t, s.now())
		return writeAtomic(filepath.Join(s.dir, generateFilename(t.ID, t.Name)), &t)
	})
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// Update rewrites a task file, renaming it when the name changed.
func (s *Store) Update(ctx context.Context, t task.Task) error {
	if err := task.Validate(&t); err != nil {
		return err
	}
	return s.locked(ctx, "update", t.ID, func(files map[int]string) error {
		oldPath, ok := files[t.ID]
		if !ok {
			return store.NotFound("update", t.ID)
		}
		if old, err := task.Read(oldPath); err == nil {
			t.Created = old.Created
		}
		task.UpdateTimestamps(&t, s.now())
		newPath := filepath.Join(s.dir, generateFilename(t.ID, t.Name))
		if err := writeAtomic(newPath, &t); err != nil {
			return err
		}
		if newPath != oldPath {
			return os.Remove(oldPath)
		}
		return nil
	})
}

// Delete removes the task file.
func (s *Store) Delete(ctx context.Context, id int) error {
	return s.locked(ctx, "delete", id, func(files map[int]string) error {
		path, ok := files[id]
		if !ok {
			return store.NotFound("delete", id)
		}
		return os.Remove(path)
	})
}

// SetStatus rewrites the status field of a task file.
func (s *Store) SetStatus(ctx context.Context, id int, st task.Status) error {
	return s.locked(ctx, "set_status", id, func(files map[int]string) error {
		path, ok := files[id]
		if !ok {
			return store.NotFound("set_status", id)
		}
		t, err := task.Read(path)
		if err != nil {
			return err
		}
		t.ID = id
		if st == task.Completed && t.Status != task.Completed {
			t.LastCompleted = s.today().Ptr()
		}
		t.Status = st
		task.UpdateTimestamps(t, s.now())
		return writeAtomic(path, t)
	})
}

// locked runs fn with the directory lock held and the current file index.
func (s *Store) locked(ctx context.Context, op string, id int, fn func(map[int]string) error) error {
	if err := ctx.Err(); err != nil {
		return store.Wrap(op, id, err)
	}
	if _, err := os.Stat(s.dir); err != nil {
		return s.fail(op, id, err)
	}

	unlock, err := filelock.LockContext(ctx, filepath.Join(s.dir, lockName))
	if err != nil {
		return s.fail(op, id, fmt.Errorf("acquiring lock: %w", err))
	}
	defer func() {
		if err := unlock(); err != nil {
			s.logger.Printf("Warning: releasing lock: %v", err)
		}
	}()

	files, err := taskFiles(s.dir)
	if err != nil {
		return s.fail(op, id, err)
	}
	return store.Wrap(op, id, fn(files))
}

// fail classifies filesystem errors. A vanished tasks directory is transient.
func (s *Store) fail(op string, id int, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return store.Unavailable(op, fmt.Errorf("tasks directory %s: %w", s.dir, err))
	}
	return store.Wrap(op, id, err)
}

// writeAtomic writes t to a temp file and renames it into place.
func writeAtomic(path string, t *task.Task) error {
	data, err := task.Marshal(t)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".task-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing task file: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("renaming task file: %w", err)
	}
	return nil
}
