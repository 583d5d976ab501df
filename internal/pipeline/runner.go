package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vmunix/vidstage/internal/catalog"
)

const defaultItemDelay = 20 * time.Second

// Runner drives batch processing runs over the catalog.
type Runner struct {
	store     *catalog.Store
	coord     *Coordinator
	itemDelay time.Duration
	schedule  string
	log       *slog.Logger

	running atomic.Bool
	cron    *cron.Cron
	sleep   func(ctx context.Context, d time.Duration) error
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithItemDelay overrides the fixed delay between items.
func WithItemDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.itemDelay = d
	}
}

// WithSchedule sets the cron schedule for periodic runs.
func WithSchedule(spec string) RunnerOption {
	return func(r *Runner) {
		r.schedule = spec
	}
}

// NewRunner creates a Runner.
func NewRunner(store *catalog.Store, coord *Coordinator, log *slog.Logger, opts ...RunnerOption) *Runner {
	if log == nil {
		log = slog.Default()
	}
	r := &Runner{
		store:     store,
		coord:     coord,
		itemDelay: defaultItemDelay,
		log:       log.With("component", "runner"),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes one batch. Overlapping runs are skipped, not queued.
// Item failures are recorded and do not stop the batch.
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Info("run already in progress, skipping")
		return nil
	}
	defer r.running.Store(false)

	started := time.Now()
	if err := r.store.UpsertRunStatus(&catalog.RunStatus{
		Status:  catalog.RunActive,
		LastRun: &started,
	}); err != nil {
		return fmt.Errorf("mark run active: %w", err)
	}

	batch, err := r.collect()
	if err != nil {
		_ = r.store.UpsertRunStatus(&catalog.RunStatus{
			Status:  catalog.RunError,
			LastRun: &started,
			Errors:  []string{err.Error()},
		})
		return err
	}
	r.log.Info("run started", "items", len(batch))

	processed := 0
	var errs []string
	for i, m := range batch {
		// Fixed spacing between items keeps us under external rate limits.
		if i > 0 {
			if err := r.sleep(ctx, r.itemDelay); err != nil {
				errs = append(errs, "run interrupted: "+err.Error())
				break
			}
		}

		if err := r.coord.ProcessMedia(ctx, m); err != nil {
			if ctx.Err() != nil {
				errs = append(errs, "run interrupted: "+ctx.Err().Error())
				break
			}
			r.log.Error("item failed", "media_id", m.ID, "title", m.Title, "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", m.Title, err))
			if err := r.store.UpdateMediaStatus(m.ID, catalog.StatusError); err != nil {
				r.log.Error("error status update failed", "media_id", m.ID, "error", err)
			}
			_ = r.store.AppendLog(fmt.Sprintf("%s: processing failed", m.Title), err.Error())
		}
		processed++
	}

	if err := r.store.UpsertRunStatus(&catalog.RunStatus{
		Status:         catalog.RunInactive,
		LastRun:        &started,
		ProcessedItems: processed,
		Errors:         errs,
	}); err != nil {
		return fmt.Errorf("mark run finished: %w", err)
	}

	r.log.Info("run finished",
		"processed", processed, "failed", len(errs),
		"duration", time.Since(started).Round(time.Second))
	return nil
}

// collect builds the batch in processing order: refresh candidates
// first, then items seeking full content, then new items, then retries.
func (r *Runner) collect() ([]*catalog.Media, error) {
	var batch []*catalog.Media
	seen := make(map[int64]bool)
	add := func(items []*catalog.Media) {
		for _, m := range items {
			if !seen[m.ID] {
				seen[m.ID] = true
				batch = append(batch, m)
			}
		}
	}

	refresh, err := r.store.ListRefreshCandidates()
	if err != nil {
		return nil, err
	}
	add(refresh)

	for _, status := range []catalog.MediaStatus{
		catalog.StatusTrailer,
		catalog.StatusInactive,
		catalog.StatusNoVideo,
		catalog.StatusError,
	} {
		items, err := r.store.ListMediaByStatus(status)
		if err != nil {
			return nil, err
		}
		add(items)
	}
	return batch, nil
}

// Start schedules periodic runs. ctx bounds the lifetime of scheduled
// work; Stop waits for an in-flight run to finish.
func (r *Runner) Start(ctx context.Context) error {
	if r.schedule == "" {
		return fmt.Errorf("no schedule configured")
	}
	r.cron = cron.New()
	_, err := r.cron.AddFunc(r.schedule, func() {
		if err := r.Run(ctx); err != nil {
			r.log.Error("scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("bad schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	r.log.Info("scheduler started", "schedule", r.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running job to complete.
func (r *Runner) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
