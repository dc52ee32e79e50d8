// Package executor implements the Job Executor (spec.md §4.H): a
// single-threaded claim loop that drives the Portal Strategy, the
// Label Export Pipeline, and the Artifact Publisher for one job at a
// time, updating progress and status as it goes. Grounded on the
// teacher's internal/engine.Engine lifecycle (explicit state,
// blocking poll loop, clean shutdown via context cancellation).
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/parcelwalk/parcelwalk/internal/docfetch"
	"github.com/parcelwalk/parcelwalk/internal/jobqueue"
	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
	"github.com/parcelwalk/parcelwalk/internal/labelexport"
	"github.com/parcelwalk/parcelwalk/internal/metrics"
	"github.com/parcelwalk/parcelwalk/internal/pagedriver"
	"github.com/parcelwalk/parcelwalk/internal/parcelfile"
	"github.com/parcelwalk/parcelwalk/internal/portal"
	"github.com/parcelwalk/parcelwalk/internal/portal/portala"
	"github.com/parcelwalk/parcelwalk/internal/portal/portalb"
	"github.com/parcelwalk/parcelwalk/internal/portal/selectors"
	"github.com/parcelwalk/parcelwalk/internal/publish"
	"github.com/parcelwalk/parcelwalk/internal/ratelimit"
)

// Options configures the Executor's behavior independent of any
// single job.
type Options struct {
	PollInterval          time.Duration
	SpreadsheetFlushEvery int
	WorkDir               string

	RateLimit    RateLimitOptions
	PortalOpts   portal.Options
	DocTimeout   time.Duration
	SourceCRS    int // the shapefile's own CRS, fixed by deployment
	BrowserOpts  pagedriver.Options

	SelectorOverrides map[string]selectors.Override // keyed by county
}

// RateLimitOptions mirrors internal/ratelimit.New's parameters so the
// executor can build a fresh Limiter per job.
type RateLimitOptions struct {
	Page, Document ratelimit.Range
	ThinkEveryN    int
	Think          ratelimit.Range
}

// Executor drives the single claim loop.
type Executor struct {
	queue     *jobqueue.Repository
	store     publish.BlobStore
	publisher *publish.Publisher
	opts      Options
	logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// New builds an Executor over the given queue and blob store.
func New(queue *jobqueue.Repository, store publish.BlobStore, opts Options, logger *slog.Logger) *Executor {
	return &Executor{
		queue:     queue,
		store:     store,
		publisher: publish.New(store),
		opts:      opts,
		logger:    logger.With("component", "executor"),
		Metrics:   metrics.New(),
	}
}

// Run loops forever: claim, execute, repeat, sleeping poll_interval
// between empty claims. It returns only when ctx is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := e.queue.ClaimNextPending(ctx)
		if err == jobtypes.ErrNoPendingJob {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.opts.PollInterval):
			}
			continue
		}
		if err != nil {
			e.logger.Error("claim failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.opts.PollInterval):
			}
			continue
		}

		e.Metrics.JobsClaimed.Add(1)
		e.executeOne(ctx, job)
	}
}

func (e *Executor) executeOne(ctx context.Context, job *jobtypes.Job) {
	logger := e.logger.With("job_id", job.ID, "county", job.County)
	jobDir := filepath.Join(e.opts.WorkDir, job.ID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		e.fail(ctx, job, jobtypes.KindUploadFailed, fmt.Errorf("create job dir: %w", err))
		return
	}

	if e.cancelled(ctx, job.ID) {
		logger.Info("job cancelled before start")
		e.Metrics.JobsCancelled.Add(1)
		return
	}

	parcelsPath, shapePath, err := e.preflightInputs(ctx, job, jobDir)
	if err != nil {
		e.fail(ctx, job, jobtypes.KindShapefileMissing, err)
		return
	}

	strategy, err := strategyFor(job.PortalKind, e.opts.SelectorOverrides[job.County], e.opts.PortalOpts.SearchTimeout)
	if err != nil {
		e.fail(ctx, job, jobtypes.KindPortalUnrecognized, err)
		return
	}

	limiter := ratelimit.New(e.opts.RateLimit.Page, e.opts.RateLimit.Document, e.opts.RateLimit.ThinkEveryN, e.opts.RateLimit.Think)
	fetcher := docfetch.New(e.opts.DocTimeout, limiter)
	runner := portal.NewRunner(strategy, limiter, fetcher, e.opts.PortalOpts, logger)

	ids, err := readParcelIDs(parcelsPath)
	if err != nil {
		e.fail(ctx, job, jobtypes.KindPortalUnrecognized, err)
		return
	}
	job.Counts.Total = len(ids)
	e.queue.Update(ctx, job.ID, bson.M{"counts.total": job.Counts.Total, "current_step": "scraping"})

	driver, err := pagedriver.Open(e.opts.BrowserOpts, logger)
	if err != nil {
		e.fail(ctx, job, jobtypes.KindPortalUnrecognized, fmt.Errorf("open page driver: %w", err))
		return
	}
	defer driver.Close()

	if nerr := driver.Navigate(job.PortalURL); nerr != nil {
		e.fail(ctx, job, jobtypes.KindPortalUnrecognized, fmt.Errorf("navigate portal: %w", nerr))
		return
	}

	var records []*jobtypes.ScrapedRecord
	emit := func(rec *jobtypes.ScrapedRecord) {
		records = append(records, rec)
		switch rec.Outcome {
		case jobtypes.OutcomeOK:
			job.Counts.Completed++
			e.Metrics.ParcelsScraped.Add(1)
		case jobtypes.OutcomeNotFound:
			job.Counts.Failed++
			e.Metrics.ParcelsNotFound.Add(1)
		default:
			job.Counts.Failed++
			e.Metrics.ParcelsErrored.Add(1)
		}
		if rec.DocumentLocalPath != "" {
			e.Metrics.DocumentsFetched.Add(1)
		} else if rec.Outcome == jobtypes.OutcomeOK && rec.DocumentURL != "" {
			e.Metrics.DocumentsFailed.Add(1)
		}
		// Heartbeat on every parcel, independent of the spreadsheet
		// flush cadence below, so a long-running job's updated_at and
		// current_step never go stale between flushes.
		e.queue.Update(ctx, job.ID, bson.M{
			"counts.completed": job.Counts.Completed,
			"counts.failed":    job.Counts.Failed,
			"current_step":     fmt.Sprintf("scraping parcel %d/%d", len(records), job.Counts.Total),
		})
		if len(records)%e.opts.SpreadsheetFlushEvery == 0 {
			e.flushSpreadsheet(jobDir, records)
		}
	}
	cancelled := func() bool { return e.cancelled(ctx, job.ID) }

	runErr := runner.Run(ctx, driver, ids, emit, cancelled)
	e.flushSpreadsheet(jobDir, records)
	e.queue.Update(ctx, job.ID, bson.M{"counts.completed": job.Counts.Completed, "counts.failed": job.Counts.Failed})

	if runErr == jobtypes.ErrJobCancelled {
		logger.Info("job cancelled during scrape")
		e.Metrics.JobsCancelled.Add(1)
		return
	}
	if runErr != nil {
		kind := classifyPortalError(runErr)
		if kind == jobtypes.KindSearchInputMissing {
			e.saveDiagnosticScreenshot(ctx, driver, job, jobDir)
		}
		e.fail(ctx, job, kind, runErr)
		return
	}

	if e.cancelled(ctx, job.ID) {
		logger.Info("job cancelled after scrape, before export")
		e.Metrics.JobsCancelled.Add(1)
		return
	}

	e.queue.Update(ctx, job.ID, bson.M{"current_step": "label_export"})
	pipeline := labelexport.NewPipeline(e.opts.SourceCRS)
	scrapedXLSX := filepath.Join(jobDir, "parcels_enriched.xlsx")
	result, err := pipeline.Run(scrapedXLSX, shapePath, jobDir, job.CRSCode)
	if err != nil {
		kind := jobtypes.KindJoinEmpty
		if errors.Is(err, jobtypes.ErrShapefileMissing) {
			kind = jobtypes.KindShapefileMissing
		}
		e.fail(ctx, job, kind, err)
		return
	}
	logger.Info("label export complete", "labels", result.LabelCount, "boundaries", result.BoundaryCount)

	if e.cancelled(ctx, job.ID) {
		logger.Info("job cancelled before publish")
		e.Metrics.JobsCancelled.Add(1)
		return
	}

	e.queue.Update(ctx, job.ID, bson.M{"current_step": "publishing"})
	prcPath := filepath.Join(jobDir, "PRC.zip")
	if err := labelexport.BuildPRCBundle(documentPaths(records), prcPath); err != nil {
		e.fail(ctx, job, jobtypes.KindUploadFailed, err)
		return
	}

	artifacts := []publish.Artifact{
		{Kind: jobtypes.ArtifactExcel, KeyName: publish.KeyExcel, LocalPath: scrapedXLSX, ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{Kind: jobtypes.ArtifactDXF, KeyName: publish.KeyDXF, LocalPath: result.DXFPath, ContentType: "application/dxf"},
		{Kind: jobtypes.ArtifactPRCBundle, KeyName: publish.KeyPRCBundle, LocalPath: prcPath, ContentType: "application/zip"},
	}
	results, err := e.publisher.PublishAll(ctx, job.ID, artifacts, func(path string) (io.ReadCloser, error) {
		return os.Open(path)
	})
	if err != nil {
		e.fail(ctx, job, jobtypes.KindUploadFailed, err)
		return
	}

	e.Metrics.JobsCompleted.Add(1)
	now := time.Now()
	e.queue.Update(ctx, job.ID, bson.M{
		"status":               jobtypes.StatusCompleted,
		"results":              results,
		"timestamps.completed_at": now,
		"current_step":         "",
	})
}

func (e *Executor) flushSpreadsheet(jobDir string, records []*jobtypes.ScrapedRecord) {
	path := filepath.Join(jobDir, "parcels_enriched.xlsx")
	if err := labelexport.WriteSpreadsheet(records, path); err != nil {
		e.logger.Warn("partial spreadsheet flush failed", "error", err)
	}
}

func (e *Executor) fail(ctx context.Context, job *jobtypes.Job, kind jobtypes.ErrorKind, err error) {
	now := time.Now()
	e.logger.Error("job failed", "job_id", job.ID, "kind", kind, "error", err)
	e.Metrics.JobsFailed.Add(1)
	e.queue.Update(ctx, job.ID, bson.M{
		"status":                  jobtypes.StatusFailed,
		"error":                   fmt.Sprintf("%s: %v", kind, err),
		"timestamps.completed_at": now,
	})
}

// saveDiagnosticScreenshot captures the portal page at the moment a
// search_input_missing failure was classified and uploads it as a
// best-effort debugging aid. Failure here is logged and swallowed: a
// missing diagnostic must never mask the real job failure it was
// trying to explain.
func (e *Executor) saveDiagnosticScreenshot(ctx context.Context, driver *pagedriver.Driver, job *jobtypes.Job, jobDir string) {
	png, err := driver.Screenshot()
	if err != nil {
		e.logger.Warn("diagnostic screenshot capture failed", "job_id", job.ID, "error", err)
		return
	}
	localPath := filepath.Join(jobDir, "diagnostic.png")
	if err := os.WriteFile(localPath, png, 0o644); err != nil {
		e.logger.Warn("diagnostic screenshot write failed", "job_id", job.ID, "error", err)
		return
	}
	key := publish.KeyPrefix(job.ID) + "diagnostic.png"
	if err := e.store.Upload(ctx, key, bytes.NewReader(png), "image/png"); err != nil {
		e.logger.Warn("diagnostic screenshot upload failed", "job_id", job.ID, "error", err)
	}
}

func (e *Executor) cancelled(ctx context.Context, jobID string) bool {
	cancelled, err := e.queue.IsCancelled(ctx, jobID)
	if err != nil {
		e.logger.Warn("cancellation check failed", "job_id", jobID, "error", err)
		return false
	}
	return cancelled
}

func (e *Executor) preflightInputs(ctx context.Context, job *jobtypes.Job, jobDir string) (parcelsPath, shapePath string, err error) {
	parcelsPath = job.ParcelInput.LocalPath
	if parcelsPath == "" || !fileExists(parcelsPath) {
		parcelsPath = filepath.Join(jobDir, filepath.Base(job.ParcelInput.Key))
		if err := e.store.DownloadTo(ctx, job.ParcelInput.Key, parcelsPath); err != nil {
			return "", "", fmt.Errorf("download parcel input: %w", err)
		}
	}
	shapePath = job.ShapeInput.LocalPath
	if shapePath == "" || !fileExists(shapePath) {
		shapePath = filepath.Join(jobDir, filepath.Base(job.ShapeInput.Key))
		if err := e.store.DownloadTo(ctx, job.ShapeInput.Key, shapePath); err != nil {
			return "", "", fmt.Errorf("download shapefile input: %w", err)
		}
	}
	return parcelsPath, shapePath, nil
}

func readParcelIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parcel input %s: %w", path, err)
	}
	defer f.Close()
	return parcelfile.Read(f, path, 0)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func documentPaths(records []*jobtypes.ScrapedRecord) []string {
	var paths []string
	for _, r := range records {
		if r.DocumentLocalPath != "" {
			paths = append(paths, r.DocumentLocalPath)
		}
	}
	return paths
}

func strategyFor(kind jobtypes.PortalKind, override selectors.Override, searchWait time.Duration) (portal.Strategy, error) {
	switch kind {
	case jobtypes.PortalA:
		return portala.New(override, searchWait), nil
	case jobtypes.PortalB:
		return portalb.New(override, searchWait), nil
	default:
		return nil, fmt.Errorf("%w: %q", jobtypes.ErrPortalUnrecognized, kind)
	}
}

func classifyPortalError(err error) jobtypes.ErrorKind {
	var jobErr *jobtypes.JobError
	if errors.As(err, &jobErr) {
		return jobErr.Kind
	}
	return jobtypes.KindParcelExtractError
}
