// Package retention implements the Retention Sweeper (spec.md §4.I):
// a timer-driven pass that deletes jobs older than a configured
// threshold along with their blobs and local temp directories.
package retention

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
	"github.com/parcelwalk/parcelwalk/internal/publish"
)

// Queue is the subset of jobqueue.Repository the sweeper consumes.
type Queue interface {
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*jobtypes.Job, error)
	Delete(ctx context.Context, id string) error
}

// Sweeper runs on its own timer, independent of the Executor's claim
// loop (spec.md §5: "runs on a separate thread and never mutates the
// job currently being processed except to observe it").
type Sweeper struct {
	queue     Queue
	publisher *publish.Publisher
	workDir   string
	maxAge    time.Duration
	every     time.Duration
	logger    *slog.Logger
}

// New builds a Sweeper.
func New(queue Queue, store publish.BlobStore, workDir string, maxAge, every time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		queue:     queue,
		publisher: publish.New(store),
		workDir:   workDir,
		maxAge:    maxAge,
		every:     every,
		logger:    logger.With("component", "retention_sweeper"),
	}
}

// Run blocks, sweeping on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// sweepOnce performs a single pass (spec.md §8 "retention
// completeness"): errors deleting external resources are logged, not
// fatal, so one bad job can't block the rest of the sweep.
func (s *Sweeper) sweepOnce(ctx context.Context) {
	cutoff := time.Now().Add(-s.maxAge)
	jobs, err := s.queue.ListOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("list older-than failed", "error", err)
		return
	}

	for _, job := range jobs {
		if err := s.publisher.DeletePrefix(ctx, job.ID); err != nil {
			s.logger.Warn("failed to delete job blobs", "job_id", job.ID, "error", err)
		}

		jobDir := filepath.Join(s.workDir, job.ID)
		if err := os.RemoveAll(jobDir); err != nil {
			s.logger.Warn("failed to delete job temp dir", "job_id", job.ID, "dir", jobDir, "error", err)
		}

		if err := s.queue.Delete(ctx, job.ID); err != nil {
			s.logger.Warn("failed to delete job record", "job_id", job.ID, "error", err)
			continue
		}
		s.logger.Info("swept job", "job_id", job.ID, "created_at", job.Timestamps.CreatedAt)
	}
}
