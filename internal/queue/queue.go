// Package queue is the durable FIFO of writes waiting for the store.
// Entries are stored one JSON object per line, appended and fsynced
// before Enqueue returns.
package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/twiced-technology-gmbh/housekeep/internal/filelock"
)

const (
	fileMode = 0o600
	dirMode  = 0o750
)

// Queue is safe for concurrent use. An advisory lock file next to the log
// serializes access from other processes.
type Queue struct {
	path   string
	logger *log.Logger
	now    func() time.Time

	mu sync.Mutex
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger used for recovered torn writes.
func WithLogger(l *log.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithClock overrides the clock used for QueuedAt.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Open returns the queue stored at path, creating its directory. A partial
// last line left by a crash during Enqueue is dropped.
func Open(path string, opts ...Option) (*Queue, error) {
	q := &Queue{
		path:   path,
		logger: log.New(os.Stderr, "housekeep: ", 0),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, fmt.Errorf("creating queue directory: %w", err)
	}
	if err := q.withLock(q.repair); err != nil {
		return nil, err
	}
	return q, nil
}

// Path returns the log file path.
func (q *Queue) Path() string { return q.path }

// Enqueue appends op and returns it with ID and QueuedAt filled in.
func (q *Queue) Enqueue(op Op) (Op, error) {
	var out Op
	err := q.withLock(func() error {
		var err error
		out, err = q.appendOp(op)
		return err
	})
	return out, err
}

// EnqueueFunc builds an op from the current contents and appends it while
// holding the lock, so the contents cannot change in between.
func (q *Queue) EnqueueFunc(build func(pending []Op) (Op, error)) (Op, error) {
	var out Op
	err := q.withLock(func() error {
		pending, _, err := q.read()
		if err != nil {
			return err
		}
		op, err := build(pending)
		if err != nil {
			return err
		}
		out, err = q.appendOp(op)
		return err
	})
	return out, err
}

func (q *Queue) appendOp(op Op) (Op, error) {
	if err := op.Validate(); err != nil {
		return Op{}, err
	}
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.QueuedAt.IsZero() {
		op.QueuedAt = q.now().UTC().Round(0)
	}
	data, err := json.Marshal(op)
	if err != nil {
		return Op{}, fmt.Errorf("marshaling op: %w", err)
	}
	data = append(data, '\n')

	terminated, err := q.terminated()
	if err != nil {
		return Op{}, err
	}
	if !terminated {
		if err := q.repair(); err != nil {
			return Op{}, err
		}
	}

	f, err := os.OpenFile(q.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileMode) //nolint:gosec // queue path from config
	if err != nil {
		return Op{}, fmt.Errorf("opening queue: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return Op{}, fmt.Errorf("writing queue: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return Op{}, fmt.Errorf("syncing queue: %w", err)
	}
	if err := f.Close(); err != nil {
		return Op{}, fmt.Errorf("closing queue: %w", err)
	}
	return op, nil
}

// LoadAll returns every queued op in enqueue order.
func (q *Queue) LoadAll() ([]Op, error) {
	var ops []Op
	err := q.withLock(func() error {
		var err error
		ops, _, err = q.read()
		return err
	})
	return ops, err
}

// Len returns the number of queued ops.
func (q *Queue) Len() (int, error) {
	ops, err := q.LoadAll()
	return len(ops), err
}

// Clear atomically empties the queue.
func (q *Queue) Clear() error {
	return q.withLock(func() error { return q.write(nil) })
}

// Update replaces the queue contents with fn's result in one atomic rewrite.
// fn sees the current contents, including ops enqueued by other callers
// since any earlier LoadAll.
func (q *Queue) Update(fn func([]Op) ([]Op, error)) error {
	return q.withLock(func() error {
		ops, _, err := q.read()
		if err != nil {
			return err
		}
		next, err := fn(ops)
		if err != nil {
			return err
		}
		return q.write(next)
	})
}

// LockDrain takes an exclusive lock that keeps two drains from replaying the
// same entries. It is separate from the queue lock so Enqueue keeps working
// during a drain.
func (q *Queue) LockDrain() (unlock func() error, err error) {
	return filelock.Lock(q.path + ".drain")
}

func (q *Queue) withLock(fn func() error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	unlock, err := filelock.Lock(q.path + ".lock")
	if err != nil {
		return fmt.Errorf("acquiring queue lock: %w", err)
	}
	defer func() {
		if err := unlock(); err != nil {
			q.logger.Printf("Warning: releasing queue lock: %v", err)
		}
	}()
	return fn()
}

// read parses the log. torn reports an unterminated last line; it is
// returned as an op when it parses and dropped when it does not.
func (q *Queue) read() (ops []Op, torn bool, err error) {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading queue: %w", err)
	}

	lines := bytes.Split(data, []byte{'\n'})
	for i, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		last := i == len(lines)-1
		var op Op
		if err := json.Unmarshal(line, &op); err != nil {
			if last {
				return ops, true, nil
			}
			return nil, false, fmt.Errorf("parsing queue line %d: %w", i+1, err)
		}
		ops = append(ops, op)
		torn = last
	}
	return ops, torn, nil
}

func (q *Queue) repair() error {
	ops, torn, err := q.read()
	if err != nil || !torn {
		return err
	}
	q.logger.Printf("Warning: repairing unterminated last entry of %s", q.path)
	return q.write(ops)
}

// terminated reports whether the log is empty or ends in a newline. An
// unterminated log means another process died mid-append.
func (q *Queue) terminated() (bool, error) {
	f, err := os.Open(q.path) //nolint:gosec // queue path from config
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("opening queue: %w", err)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("reading queue: %w", err)
	}
	if fi.Size() == 0 {
		return true, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, fi.Size()-1); err != nil {
		return false, fmt.Errorf("reading queue: %w", err)
	}
	return last[0] == '\n', nil
}

// write atomically replaces the log with ops.
func (q *Queue) write(ops []Op) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, op := range ops {
		if err := enc.Encode(op); err != nil {
			return fmt.Errorf("encoding op %d: %w", i, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(q.path), filepath.Base(q.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, q.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
