// Package worker runs the long-poll loops of the sync services: each
// worker repeatedly claims the next pending hub event for its topic
// pair, hands the source event to its handler, and reports the
// outcome back to the event stream. A local journal deduplicates
// redelivered events.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ynput/ayon-ftrack/internal/ayon"
	"github.com/ynput/ayon-ftrack/internal/journal"
)

// Handler processes one claimed source event. A returned error marks
// the job failed; the loop keeps running either way.
type Handler func(ctx context.Context, source *ayon.Event) error

// Config holds the settings for a Worker.
type Config struct {
	// Client talks to the hub event stream.
	Client *ayon.Client

	// Journal deduplicates redelivered events. Optional; without it
	// every delivery is processed.
	Journal *journal.Journal

	// SourceTopic is the enroll filter ("ftrack.leech" or an
	// "entity.*"-style topic list joined by the server).
	SourceTopic string

	// TargetTopic names the job events this worker creates.
	TargetTopic string

	// Sender tags claimed jobs so parallel workers do not fight
	// over them.
	Sender string

	// Sequential forces in-order processing of the source stream.
	Sequential bool

	// IdleDelay is the sleep after a drained stream. Zero means 2s.
	IdleDelay time.Duration

	// Handler receives each claimed source event.
	Handler Handler

	// Logger receives loop diagnostics. nil uses slog.Default.
	Logger *slog.Logger
}

// Worker is one long-poll processing loop.
type Worker struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New validates the config and builds a worker.
func New(cfg Config) (*Worker, error) {
	if cfg.Client == nil {
		return nil, errors.New("worker: client is required")
	}
	if cfg.SourceTopic == "" || cfg.TargetTopic == "" {
		return nil, errors.New("worker: source and target topics are required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("worker: handler is required")
	}
	if cfg.IdleDelay == 0 {
		cfg.IdleDelay = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("source", cfg.SourceTopic, "target", cfg.TargetTopic)
	return &Worker{cfg: cfg, logger: logger}, nil
}

// Start launches the loop goroutine. Starting a running worker is an
// error.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("worker: already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(loopCtx)
	}()
	return nil
}

// Stop cancels the loop and waits for in-flight work to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.running = false
	w.mu.Unlock()
	w.wg.Wait()
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return ctx.Err()
}

func (w *Worker) loop(ctx context.Context) {
	w.logger.Info("worker loop started")
	for {
		if ctx.Err() != nil {
			w.logger.Info("worker loop stopped")
			return
		}
		processed, err := w.pollOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("poll failed", "error", err)
			w.sleep(ctx, w.cfg.IdleDelay)
			continue
		}
		if !processed {
			w.sleep(ctx, w.cfg.IdleDelay)
		}
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// pollOnce claims and processes at most one event. The second return
// is false when the stream is drained.
func (w *Worker) pollOnce(ctx context.Context) (bool, error) {
	job, err := w.cfg.Client.Enroll(ctx, ayon.EnrollRequest{
		SourceTopic: w.cfg.SourceTopic,
		TargetTopic: w.cfg.TargetTopic,
		Sender:      w.cfg.Sender,
		Sequential:  w.cfg.Sequential,
	})
	if err != nil {
		return false, fmt.Errorf("enroll: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.cfg.Client.UpdateEvent(ctx, job.ID, map[string]any{
		"status": ayon.EventInProgress,
	}); err != nil {
		return true, fmt.Errorf("claim job %s: %w", job.ID, err)
	}

	source, err := w.cfg.Client.GetEvent(ctx, job.DependsOn)
	if err != nil {
		w.finish(ctx, job.ID, ayon.EventFailed, fmt.Sprintf("source event fetch failed: %v", err))
		return true, nil
	}

	if w.cfg.Journal != nil && source.Hash != "" {
		fresh, err := w.cfg.Journal.MarkProcessed(ctx, source.Hash, source.Topic)
		if err != nil {
			w.logger.Warn("journal write failed", "error", err)
		} else if !fresh {
			w.logger.Debug("duplicate delivery acknowledged", "hash", source.Hash)
			w.finish(ctx, job.ID, ayon.EventFinished, "duplicate delivery")
			return true, nil
		}
	}

	start := time.Now()
	if err := w.cfg.Handler(ctx, source); err != nil {
		w.logger.Error("event processing failed",
			"event", source.ID, "topic", source.Topic, "error", err)
		w.finish(ctx, job.ID, ayon.EventFailed, err.Error())
		w.count(ctx, "events_failed")
		return true, nil
	}
	w.logger.Debug("event processed",
		"event", source.ID, "topic", source.Topic,
		"duration", time.Since(start).Round(time.Millisecond))
	w.finish(ctx, job.ID, ayon.EventFinished, "")
	w.count(ctx, "events_processed")
	return true, nil
}

func (w *Worker) finish(ctx context.Context, jobID, status, description string) {
	patch := map[string]any{"status": status}
	if description != "" {
		patch["description"] = description
	}
	if err := w.cfg.Client.UpdateEvent(ctx, jobID, patch); err != nil {
		w.logger.Warn("job status update failed", "job", jobID, "status", status, "error", err)
	}
}

func (w *Worker) count(ctx context.Context, name string) {
	if w.cfg.Journal == nil {
		return
	}
	if err := w.cfg.Journal.AddCounter(ctx, name, 1); err != nil {
		w.logger.Warn("counter update failed", "counter", name, "error", err)
	}
}
