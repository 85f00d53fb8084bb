package syncer

import (
	"context"
	"time"

	"github.com/twiced-technology-gmbh/housekeep/internal/store"
)

// Default probe settings.
const (
	DefaultProbeInterval = 30 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
)

// Reconnector drains the queue as soon as the store answers again. It only
// probes while there is something to drain.
type Reconnector struct {
	coord    *Coordinator
	interval time.Duration
	timeout  time.Duration

	// OnDrain, when set, is called after every drain attempt.
	OnDrain func(DrainResult, error)
}

// NewReconnector returns a Reconnector for c. Zero durations select the defaults.
func NewReconnector(c *Coordinator, interval, timeout time.Duration) *Reconnector {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Reconnector{coord: c, interval: interval, timeout: timeout}
}

// Run probes every interval until ctx is cancelled.
func (r *Reconnector) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	online := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			online = r.Check(ctx, online)
		}
	}
}

// Check runs one probe. wasOnline is the result of the previous probe; the
// return value is the result of this one. When the queue is non-empty and
// the store answers, the queue is drained.
func (r *Reconnector) Check(ctx context.Context, wasOnline bool) bool {
	pending, err := r.coord.Pending(ctx)
	if err != nil {
		r.coord.logger.Printf("Warning: reading pending queue: %v", err)
		return wasOnline
	}
	if pending == 0 {
		return true
	}

	if err := r.probe(ctx); err != nil {
		if wasOnline {
			r.coord.logger.Printf("store unreachable, %d writes pending: %v", pending, err)
		}
		return false
	}
	if !wasOnline {
		r.coord.logger.Printf("store reachable again, draining %d writes", pending)
	}

	res, err := r.coord.Drain(ctx)
	if r.OnDrain != nil {
		r.OnDrain(res, err)
	}
	if err != nil {
		r.coord.logger.Printf("Warning: sync stopped: %v", err)
		return !store.IsTransient(err)
	}
	return true
}

func (r *Reconnector) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if p, ok := r.coord.store.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	_, err := r.coord.store.GetAll(ctx)
	return err
}
