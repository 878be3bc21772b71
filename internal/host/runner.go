// Package host drives an acquisition the way a processing framework does:
// one Execute call per round until told to stop.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/smazurov/camsync/internal/logging"
	"github.com/smazurov/camsync/internal/pipeline"
)

// DefaultMaxConsecutiveErrors is how many failed rounds in a row end a run.
const DefaultMaxConsecutiveErrors = 10

// Executor runs one round per Execute call.
type Executor interface {
	Execute(ctx context.Context) error
	Close() error
}

// Options configures a Runner.
type Options struct {
	// Interval between the starts of consecutive rounds. Zero runs rounds
	// back to back.
	Interval time.Duration
	// MaxRounds stops the runner after that many successful rounds. Zero
	// runs until cancelled.
	MaxRounds uint64
	// MaxConsecutiveErrors ends the run with an error. Zero uses the
	// default, negative never gives up.
	MaxConsecutiveErrors int
	// AfterRound is called after every successful round.
	AfterRound func(round uint64)
	// BeforeClose is called once the loop has ended, before the executor
	// is closed. Anything still reading from the cameras stops here.
	BeforeClose func()
	Logger      *slog.Logger
}

// Runner calls Execute periodically and closes the executor when done.
type Runner struct {
	exec   Executor
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	rounds  atomic.Uint64
	failed  atomic.Uint64
	running atomic.Bool
	closeMu sync.Mutex
	closed  bool
}

// NewRunner creates a runner for exec.
func NewRunner(exec Executor, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("host")
	}
	if opts.MaxConsecutiveErrors == 0 {
		opts.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		exec:   exec,
		opts:   opts,
		logger: opts.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Shutdown asks a running Run to return after the current round.
func (r *Runner) Shutdown() {
	r.cancel()
}

// Rounds returns how many rounds completed successfully.
func (r *Runner) Rounds() uint64 { return r.rounds.Load() }

// Errors returns how many rounds failed.
func (r *Runner) Errors() uint64 { return r.failed.Load() }

// Running reports whether Run is in its loop.
func (r *Runner) Running() bool { return r.running.Load() }

// Run executes rounds until ctx is cancelled, Shutdown is called, MaxRounds
// is reached, the executor stops, or too many rounds fail in a row. The
// executor is closed before Run returns. Cancellation is not an error.
func (r *Runner) Run(ctx context.Context) error {
	ctx, stop := mergeContexts(ctx, r.ctx)
	defer stop()

	r.running.Store(true)
	defer r.running.Store(false)

	runErr := r.loop(ctx)
	if r.opts.BeforeClose != nil {
		r.opts.BeforeClose()
	}
	if err := r.close(); err != nil {
		r.logger.Warn("Acquisition shutdown reported errors", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	r.logger.Info("Runner stopped", "rounds", r.rounds.Load(), "errors", r.failed.Load())
	return runErr
}

// RunWithSignals is Run that also returns on SIGINT or SIGTERM.
func (r *Runner) RunWithSignals(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case sig := <-sigChan:
			r.logger.Info("Received shutdown signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return r.Run(ctx)
}

func (r *Runner) loop(ctx context.Context) error {
	var tick <-chan time.Time
	if r.opts.Interval > 0 {
		ticker := time.NewTicker(r.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	r.logger.Info("Runner started", "interval", r.opts.Interval, "max_rounds", r.opts.MaxRounds)

	consecutive := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		err := r.exec.Execute(ctx)
		switch {
		case err == nil:
			consecutive = 0
			n := r.rounds.Add(1)
			if r.opts.AfterRound != nil {
				r.opts.AfterRound(n)
			}
			if r.opts.MaxRounds > 0 && n >= r.opts.MaxRounds {
				return nil
			}
		case errors.Is(err, pipeline.ErrStopped):
			r.logger.Info("Acquisition stopped")
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			consecutive++
			r.failed.Add(1)
			r.logger.Error("Round failed", "error", err, "consecutive", consecutive)
			if r.opts.MaxConsecutiveErrors > 0 && consecutive >= r.opts.MaxConsecutiveErrors {
				return fmt.Errorf("%d consecutive rounds failed: %w", consecutive, err)
			}
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}
	}
}

func (r *Runner) close() error {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.exec.Close()
}

// mergeContexts returns a context cancelled when either parent is.
func mergeContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
