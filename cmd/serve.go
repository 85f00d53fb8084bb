package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/housekeep/internal/api"
	"github.com/twiced-technology-gmbh/housekeep/internal/sweeper"
	"github.com/twiced-technology-gmbh/housekeep/internal/syncer"
	"github.com/twiced-technology-gmbh/housekeep/internal/watcher"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the overdue sweeper",
	Long: `Serves the task API over HTTP and runs the background jobs: the overdue
sweep (first run immediately, then every sweep.interval_hours) and the
reconnect probe that syncs queued changes as soon as the store answers
again. Queued changes written by other housekeep commands are picked up
when the queue file changes. Stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	serveCmd.Flags().StringSlice("cors-origin", []string{"*"}, "allowed CORS origins")
	serveCmd.Flags().Bool("no-sweep", false, "do not run the overdue sweeper")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr, _ := cmd.Flags().GetString("addr")
	origins, _ := cmd.Flags().GetStringSlice("cors-origin")
	noSweep, _ := cmd.Flags().GetBool("no-sweep")

	srv := &http.Server{
		Addr: addr,
		Handler: api.New(a.coord,
			api.WithLogger(a.logger),
			api.WithAllowedOrigins(origins...),
			api.WithDefaultPriority(a.cfg.Defaults.Priority),
			api.WithProbeTimeout(a.cfg.ProbeTimeout()),
		).Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var wg sync.WaitGroup
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	if !noSweep {
		sw := sweeper.New(a.store,
			sweeper.WithInterval(a.cfg.SweepInterval()),
			sweeper.WithLogger(a.logger),
			sweeper.WithActivityLog(a.activity),
		)
		run(sw.Run)
	}

	rec := syncer.NewReconnector(a.coord, a.cfg.ProbeInterval(), a.cfg.ProbeTimeout())
	rec.OnDrain = func(res syncer.DrainResult, _ error) {
		if res.Applied > 0 {
			a.logger.Printf("synced %d queued change(s), %d remaining", res.Applied, res.Remaining)
		}
	}
	run(rec.Run)
	run(func(ctx context.Context) { watchQueue(ctx, a, rec) })

	errCh := make(chan error, 1)
	go func() {
		a.logger.Printf("listening on %s (%s backend)", addr, a.cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stop()
		wg.Wait()
		return fmt.Errorf("serving: %w", err)
	}

	a.logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Printf("Warning: shutting down server: %v", err)
	}
	wg.Wait()
	return nil
}

// watchQueue runs a reconnect check whenever another process writes the
// queue file, so its changes are synced without waiting for the next probe.
func watchQueue(ctx context.Context, a *app, rec *syncer.Reconnector) {
	queueName := filepath.Base(a.cfg.QueuePath())
	kick := make(chan struct{}, 1)

	w, err := watcher.New([]string{filepath.Dir(a.cfg.QueuePath())}, func() {
		select {
		case kick <- struct{}{}:
		default:
		}
	}, watcher.WithIgnore(func(name string) bool {
		return filepath.Base(name) != queueName
	}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: watching queue file: %v\n", err)
		return
	}
	defer w.Close()

	go w.Run(ctx, func(err error) {
		a.logger.Printf("Warning: file watcher: %v", err)
	})

	online := true
	seen := queueStamp(a.cfg.QueuePath())
	for {
		select {
		case <-ctx.Done():
			return
		case <-kick:
			if queueStamp(a.cfg.QueuePath()).same(seen) {
				continue
			}
			online = rec.Check(ctx, online)
			seen = queueStamp(a.cfg.QueuePath())
		}
	}
}

// fileStamp identifies one version of a file's contents.
type fileStamp struct {
	size    int64
	modTime time.Time
}

func (s fileStamp) same(o fileStamp) bool {
	return s.size == o.size && s.modTime.Equal(o.modTime)
}

// queueStamp returns the zero stamp when the queue file does not exist.
func queueStamp(path string) fileStamp {
	fi, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{size: fi.Size(), modTime: fi.ModTime()}
}
