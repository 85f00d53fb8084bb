// Package sweeper periodically marks active and postponed tasks whose due
// date has passed as overdue.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/twiced-technology-gmbh/housekeep/internal/activity"
	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/store"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

// DefaultInterval is the time between sweeps.
const DefaultInterval = 24 * time.Hour

// ErrSkipped is returned by RunOnce when the store could not be read
// because of a transient failure. The next run retries.
var ErrSkipped = errors.New("sweep skipped: store unreachable")

// Result summarizes a sweep.
type Result struct {
	Checked int
	Marked  int
	Failed  int
	// MarkedIDs lists the tasks that became overdue.
	MarkedIDs []int
}

// Sweeper re-derives overdue status. Its writes go straight to the store
// and are never queued: a failed write is recomputed on the next run.
type Sweeper struct {
	store    store.TaskStore
	interval time.Duration
	logger   *log.Logger
	activity *activity.Log
	today    func() date.Date
	bulk     bool

	// OnSweep, when set, is called after every run.
	OnSweep func(Result, error)
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithInterval sets the time between runs.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

// WithActivityLog records runs that changed something.
func WithActivityLog(l *activity.Log) Option {
	return func(s *Sweeper) { s.activity = l }
}

// WithToday overrides the calendar.
func WithToday(fn func() date.Date) Option {
	return func(s *Sweeper) { s.today = fn }
}

// WithBulk lets backends that implement store.BulkOverdueMarker apply the
// overdue rule in one call. Result.MarkedIDs stays empty in that case.
func WithBulk() Option {
	return func(s *Sweeper) { s.bulk = true }
}

// New returns a Sweeper over st.
func New(st store.TaskStore, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    st,
		interval: DefaultInterval,
		logger:   log.New(os.Stderr, "housekeep: ", 0),
		today:    date.Today,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the time between runs.
func (s *Sweeper) Interval() time.Duration { return s.interval }

// RunOnce sweeps every task once. Per-task failures are logged and counted
// but do not stop the sweep. A transient failure loading the task list
// returns ErrSkipped; any other load failure is returned as is.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	if m, ok := s.store.(store.BulkOverdueMarker); ok && s.bulk {
		return s.runBulk(ctx, m)
	}

	tasks, err := s.store.GetAll(ctx)
	if err != nil {
		if store.IsTransient(err) {
			return Result{}, fmt.Errorf("%w: %w", ErrSkipped, err)
		}
		return Result{}, fmt.Errorf("loading tasks: %w", err)
	}

	today := s.today()
	var res Result
	for _, t := range tasks {
		res.Checked++
		if !t.IsOverdue(today) {
			continue
		}
		// The task may have been completed or moved since GetAll.
		cur, err := s.store.GetByID(ctx, t.ID)
		if store.IsNotFound(err) {
			continue
		}
		if err != nil {
			res.Failed++
			s.logger.Printf("Warning: rereading task #%d: %v", t.ID, err)
			continue
		}
		if !cur.IsOverdue(today) {
			continue
		}
		if err := s.store.SetStatus(ctx, t.ID, task.Overdue); err != nil {
			res.Failed++
			s.logger.Printf("Warning: marking task #%d overdue: %v", t.ID, err)
			continue
		}
		res.Marked++
		res.MarkedIDs = append(res.MarkedIDs, t.ID)
	}

	if res.Marked > 0 || res.Failed > 0 {
		s.logger.Printf("sweep: %d checked, %d marked overdue, %d failed", res.Checked, res.Marked, res.Failed)
		s.activity.Recordf(activity.ActionSweep, 0, "%d marked overdue, %d failed", res.Marked, res.Failed)
	}
	return res, nil
}

func (s *Sweeper) runBulk(ctx context.Context, m store.BulkOverdueMarker) (Result, error) {
	n, err := m.MarkOverdue(ctx, s.today())
	if err != nil {
		if store.IsTransient(err) {
			return Result{}, fmt.Errorf("%w: %w", ErrSkipped, err)
		}
		return Result{}, fmt.Errorf("marking overdue: %w", err)
	}
	if n > 0 {
		s.logger.Printf("sweep: %d marked overdue", n)
		s.activity.Recordf(activity.ActionSweep, 0, "%d marked overdue", n)
	}
	return Result{Marked: n}, nil
}

// Run sweeps immediately and then every interval until ctx is cancelled.
// A sweep in progress when ctx is cancelled finishes first.
func (s *Sweeper) Run(ctx context.Context) {
	s.runLogged(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Sweeper) runLogged(ctx context.Context) {
	res, err := s.RunOnce(context.WithoutCancel(ctx))
	switch {
	case errors.Is(err, ErrSkipped):
		// Silent: the next tick retries.
	case err != nil:
		s.logger.Printf("Warning: sweep failed: %v", err)
	}
	if s.OnSweep != nil {
		s.OnSweep(res, err)
	}
}
