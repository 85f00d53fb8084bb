package cmd

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/twiced-technology-gmbh/housekeep/internal/config"
	"github.com/twiced-technology-gmbh/housekeep/internal/queue"
	"github.com/twiced-technology-gmbh/housekeep/internal/store"
	"github.com/twiced-technology-gmbh/housekeep/internal/syncer"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

func TestWatchQueueDrainsOncePerExternalWrite(t *testing.T) {
	cfg := config.NewDefault("home")
	cfg.SetDir(t.TempDir())
	logger := log.New(io.Discard, "", 0)

	mem := store.NewMemory()
	seeded, err := mem.Add(context.Background(), task.New("Bleed radiators", 3))
	if err != nil {
		t.Fatal(err)
	}
	mem.SetFault(func(op string, _ int) error {
		if op == "update" {
			return errors.New("row is locked by a migration")
		}
		return nil
	})

	q, err := queue.Open(cfg.QueuePath(), queue.WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	a := &app{cfg: cfg, logger: logger, store: mem, coord: syncer.New(mem, q, syncer.WithLogger(logger))}

	var drains atomic.Int32
	rec := syncer.NewReconnector(a.coord, time.Hour, time.Second)
	rec.OnDrain = func(syncer.DrainResult, error) { drains.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		watchQueue(ctx, a, rec)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()
	time.Sleep(200 * time.Millisecond)

	// A second handle on the same file stands in for another housekeep process.
	other, err := queue.Open(cfg.QueuePath(), queue.WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	seeded.Description = "both floors"
	if _, err := other.Enqueue(queue.Op{Kind: queue.KindUpdate, Task: seeded}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for drains.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if drains.Load() == 0 {
		t.Fatal("queue write did not trigger a drain")
	}

	time.Sleep(time.Second)
	if n := drains.Load(); n != 1 {
		t.Errorf("drains after one external write = %d, want 1", n)
	}
	if n, _ := q.Len(); n != 1 {
		t.Errorf("pending = %d, want the failing op kept", n)
	}
}

func TestQueueStamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.jsonl")
	if !queueStamp(path).same(fileStamp{}) {
		t.Error("missing file should give the zero stamp")
	}
	q, err := queue.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	before := queueStamp(path)
	if _, err := q.Enqueue(queue.Op{Kind: queue.KindDelete, Task: task.Task{ID: 3}}); err != nil {
		t.Fatal(err)
	}
	if queueStamp(path).same(before) {
		t.Error("stamp unchanged after an append")
	}
}
