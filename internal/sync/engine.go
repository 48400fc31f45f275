package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"errorshare/backend/internal/config"
	"errorshare/backend/internal/localstore"
	"errorshare/backend/internal/logging"
	"errorshare/backend/internal/retry"
	"errorshare/backend/pkg/models"
)

// State is the sync engine's current phase.
type State string

const (
	StateIdle     State = "idle"
	StateBatching State = "batching"
	StatePushing  State = "pushing"
	StatePulling  State = "pulling"
	StateFailed   State = "failed"
)

// Result summarizes one completed sync cycle.
type Result struct {
	Patterns  int
	Solutions int
	Feedback  int
	Failed    int
	Status    models.SyncStatus
	Duration  time.Duration
}

// Engine drains the local store into the registry on a schedule. Capture is
// never blocked by sync; a cycle that fails leaves unpushed items queued for
// the next one.
type Engine struct {
	store  *localstore.Store
	client RegistryClient
	cfg    config.SyncConfig
	log    *logging.Logger

	mu      stdsync.Mutex
	state   State
	lastErr error

	trigger chan struct{}
}

// NewEngine creates a sync engine over the given store and registry client.
func NewEngine(store *localstore.Store, client RegistryClient, cfg config.SyncConfig, log *logging.Logger) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Engine{
		store:   store,
		client:  client,
		cfg:     cfg,
		log:     log,
		state:   StateIdle,
		trigger: make(chan struct{}, 1),
	}
}

// State returns the current phase and, when failed, the reason.
func (e *Engine) State() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.lastErr
}

func (e *Engine) setState(s State, err error) {
	e.mu.Lock()
	e.state = s
	e.lastErr = err
	e.mu.Unlock()
}

// TriggerSync requests an immediate cycle. Non-blocking; a cycle already
// pending coalesces with this one.
func (e *Engine) TriggerSync() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run executes cycles on the configured interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	interval := e.cfg.Interval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.trigger:
		}

		if _, err := e.Cycle(ctx); err != nil {
			e.log.Warn("sync cycle failed", "error", err)
		}
	}
}

// Cycle runs one push/pull pass. Items are acknowledged one at a time as the
// registry accepts them, so a mid-batch failure loses nothing: the rejected
// item and everything after it stay queued.
func (e *Engine) Cycle(ctx context.Context) (*Result, error) {
	start := time.Now()
	retryCfg := retry.WithAttempts(e.cfg.RetryAttempts + 1)
	res := &Result{}

	e.setState(StateBatching, nil)
	patterns, err := e.store.UnsyncedPatterns(ctx, e.cfg.BatchSize)
	if err != nil {
		return e.fail(res, start, err)
	}
	solutions, err := e.store.UnsyncedSolutions(ctx, e.cfg.BatchSize)
	if err != nil {
		return e.fail(res, start, err)
	}
	feedback, err := e.store.UnsyncedFeedback(ctx, e.cfg.BatchSize)
	if err != nil {
		return e.fail(res, start, err)
	}

	e.setState(StatePushing, nil)
	for _, p := range patterns {
		err := retry.Do(ctx, retryCfg, func() error { return e.client.PushPattern(ctx, p) })
		if err != nil {
			res.Failed++
			e.log.Warn("pattern push rejected", "signature", p.Signature, "error", err)
			continue
		}
		if err := e.store.MarkPatternSynced(ctx, p.Signature); err != nil {
			return e.fail(res, start, err)
		}
		res.Patterns++
	}
	for _, s := range solutions {
		err := retry.Do(ctx, retryCfg, func() error { return e.client.PushSolution(ctx, s) })
		if err != nil {
			res.Failed++
			e.log.Warn("solution push rejected", "solution_id", s.ID, "error", err)
			continue
		}
		if err := e.store.MarkSolutionSynced(ctx, s.ID); err != nil {
			return e.fail(res, start, err)
		}
		res.Solutions++
	}
	for _, f := range feedback {
		err := retry.Do(ctx, retryCfg, func() error { return e.client.PushFeedback(ctx, f) })
		if err != nil {
			res.Failed++
			e.log.Warn("feedback push rejected", "feedback_id", f.ID, "error", err)
			continue
		}
		if err := e.store.MarkFeedbackSynced(ctx, f.ID); err != nil {
			return e.fail(res, start, err)
		}
		res.Feedback++
	}

	// Pull covers every locally known pattern, not just this cycle's push
	// batch, so solutions other instances contribute later still arrive.
	e.setState(StatePulling, nil)
	known, err := e.store.ListPatterns(ctx)
	if err != nil {
		return e.fail(res, start, err)
	}
	for _, p := range known {
		pulled, err := e.client.PullSolutions(ctx, p.Signature)
		if err != nil {
			e.log.Debug("solution pull skipped", "signature", p.Signature, "error", err)
			continue
		}
		if len(pulled) == 0 {
			continue
		}
		if err := e.store.CacheKnownSolutions(ctx, p.Signature, pulled); err != nil {
			return e.fail(res, start, err)
		}
	}

	res.Duration = time.Since(start)
	res.Status = models.SyncSuccess
	if res.Failed > 0 {
		res.Status = models.SyncPartial
	}

	e.report(ctx, res)
	e.setState(StateIdle, nil)
	e.log.Info("sync cycle complete",
		"patterns", res.Patterns, "solutions", res.Solutions,
		"feedback", res.Feedback, "failed", res.Failed, "status", res.Status)
	return res, nil
}

func (e *Engine) fail(res *Result, start time.Time, err error) (*Result, error) {
	res.Duration = time.Since(start)
	res.Status = models.SyncFailed
	e.setState(StateFailed, err)
	e.report(context.Background(), res)
	// The failure stays visible through lastErr; the engine itself goes back
	// to idle so the next tick starts a fresh cycle.
	e.setState(StateIdle, err)
	return res, fmt.Errorf("sync cycle: %w", err)
}

// report writes the cycle outcome to the registry's audit trail. Best effort;
// an unreachable registry must not turn a finished cycle into a failure.
func (e *Engine) report(ctx context.Context, res *Result) {
	var detail *string
	if res.Status == models.SyncFailed {
		if _, err := e.State(); err != nil {
			msg := err.Error()
			detail = &msg
		}
	}
	h := &models.SyncHistory{
		PatternsSynced:  res.Patterns,
		SolutionsSynced: res.Solutions,
		FeedbackSynced:  res.Feedback,
		Status:          res.Status,
		DurationMs:      res.Duration.Milliseconds(),
		ErrorDetail:     detail,
	}
	if err := e.client.ReportSync(ctx, h); err != nil {
		e.log.Debug("sync report not delivered", "error", err)
	}
}
