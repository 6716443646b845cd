// Package downloader fetches the media referenced by a scrape run into the
// user's output folder. The history log is the idempotence ledger: a file
// named there, or already on disk, is never fetched again.
package downloader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"profilegrab/pkg/config"
	errs "profilegrab/pkg/errors"
	"profilegrab/pkg/history"
	"profilegrab/pkg/logger"
	"profilegrab/pkg/models"
	"profilegrab/pkg/ratelimit"
	"profilegrab/pkg/retry"
	"profilegrab/pkg/storage"
)

// DefaultWorkers is the download pool size
const DefaultWorkers = 10

// Summary counts the outcome of one DownloadAll call
type Summary struct {
	Total      int
	Downloaded int
	Skipped    int
	Failed     int
	Cancelled  int
	// Unrecorded counts files saved to disk whose history line could not
	// be written. They are fetched again by the next run.
	Unrecorded int
	Bytes      int64
}

// Recorder observes finished jobs, e.g. for metrics
type Recorder interface {
	RecordDownload(outcome Outcome, duration time.Duration, bytes int64)
}

// Options configures an Engine
type Options struct {
	Storage *storage.Manager
	Fetcher Fetcher
	Limiter ratelimit.Limiter
	Retry   *retry.Config
	Workers int
	// Timeout bounds a single fetch attempt
	Timeout  time.Duration
	Logger   logger.Logger
	Recorder Recorder
}

// Engine is the download engine
type Engine struct {
	storage  *storage.Manager
	fetcher  Fetcher
	limiter  ratelimit.Limiter
	retry    *retry.Config
	workers  int
	timeout  time.Duration
	logger   logger.Logger
	recorder Recorder
}

// New creates an engine, filling unset options with defaults
func New(opts Options) *Engine {
	e := &Engine{
		storage:  opts.Storage,
		fetcher:  opts.Fetcher,
		limiter:  opts.Limiter,
		retry:    opts.Retry,
		workers:  opts.Workers,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		recorder: opts.Recorder,
	}
	if e.logger == nil {
		e.logger = logger.NewNopLogger()
	}
	if e.storage == nil {
		e.storage = storage.NewManager(nil, ".")
	}
	if e.fetcher == nil {
		e.fetcher = NewHTTPFetcher(nil, "")
	}
	if e.limiter == nil {
		e.limiter = ratelimit.Unlimited{}
	}
	if e.retry == nil {
		e.retry = retry.DefaultConfig()
		e.retry.Logger = e.logger
	}
	if e.workers <= 0 {
		e.workers = DefaultWorkers
	}
	if e.timeout <= 0 {
		e.timeout = 30 * time.Second
	}
	return e
}

// NewFromConfig wires an engine from the download and rate limit settings
func NewFromConfig(cfg *config.Config, store *storage.Manager, log logger.Logger, rec Recorder) *Engine {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.Download.RetryAttempts + 1
	rc.Logger = log

	return New(Options{
		Storage:  store,
		Fetcher:  NewHTTPFetcher(&http.Client{}, cfg.Download.UserAgent),
		Limiter:  ratelimit.FromConfig(cfg.RateLimit),
		Retry:    rc,
		Workers:  cfg.Download.ConcurrentDownloads,
		Timeout:  cfg.Download.Timeout,
		Logger:   log,
		Recorder: rec,
	})
}

// DownloadAll fetches every record not yet recorded in the history log at
// historyPath into destDir. Per-file failures are counted in the summary; the
// returned error is reserved for an unusable destination or history log.
//
// When ctx is cancelled no further jobs are dispatched and queued jobs are
// dropped, while fetches already running finish under their own timeout so no
// partial file or half-written history line is left behind.
func (e *Engine) DownloadAll(ctx context.Context, records []models.MediaRecord, destDir, historyPath string) (Summary, error) {
	var summary Summary

	if err := e.storage.Fs().MkdirAll(destDir, 0755); err != nil {
		return summary, errs.Download("download_all", "cannot create destination directory", err)
	}

	ledger, err := history.Open(e.storage.Fs(), historyPath)
	if err != nil {
		return summary, errs.Download("download_all", "cannot open history log", err)
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			e.logger.WithError(err).Warn("failed to close history log")
		}
	}()

	unique := Dedupe(records)
	summary.Total = len(unique)

	jobs := make([]Job, 0, len(unique))
	queued := make(map[string]struct{}, len(unique))
	for _, r := range unique {
		name, err := Filename(r)
		if err != nil {
			summary.Failed++
			e.logger.WithField("post_url", r.PostURL).WithError(err).Warn("skipping record without a usable file name")
			e.record(OutcomeFailed, 0, 0)
			continue
		}
		if _, dup := queued[name]; dup || ledger.Contains(name) || e.storage.Exists(destDir, name) {
			summary.Skipped++
			e.record(OutcomeSkipped, 0, 0)
			continue
		}
		queued[name] = struct{}{}
		jobs = append(jobs, Job{Record: r, Filename: name, Dir: destDir})
	}

	e.logger.InfoWithFields("starting downloads", map[string]interface{}{
		"records": len(records),
		"unique":  len(unique),
		"queued":  len(jobs),
		"skipped": summary.Skipped,
		"workers": e.workers,
	})
	if len(jobs) == 0 {
		return summary, nil
	}

	pool := NewWorkerPool(e.workers, e.processor(ctx, ledger), e.logger)
	pool.Start(context.WithoutCancel(ctx))

	var undispatched int
	go func() {
		defer pool.Stop()
		for i, job := range jobs {
			if err := pool.Submit(ctx, job); err != nil {
				e.logger.WithError(err).WithField("queued", pool.QueueSize()).Warn("download dispatch stopped")
				undispatched = len(jobs) - i
				return
			}
		}
	}()

	for result := range pool.Results() {
		switch result.Outcome {
		case OutcomeDownloaded:
			summary.Downloaded++
			summary.Bytes += result.Size
			if result.Error != nil {
				summary.Unrecorded++
			}
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeCancelled:
			summary.Cancelled++
		default:
			summary.Failed++
		}
		e.record(result.Outcome, result.Duration, result.Size)
	}
	// results closes after the dispatcher returns
	summary.Cancelled += undispatched

	e.logger.InfoWithFields("downloads finished", map[string]interface{}{
		"downloaded": summary.Downloaded,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
		"cancelled":  summary.Cancelled,
		"unrecorded": summary.Unrecorded,
		"bytes":      summary.Bytes,
	})
	return summary, nil
}

// processor builds the per-job work function. dispatch is the caller's
// context: a job a worker picks up after it is done is dropped unstarted.
func (e *Engine) processor(dispatch context.Context, ledger *history.Log) ProcessFunc {
	return func(ctx context.Context, job Job, workerID int) Result {
		if dispatch.Err() != nil {
			return Result{Outcome: OutcomeCancelled, Error: dispatch.Err()}
		}
		// another worker may have finished the same name since dispatch
		if ledger.Contains(job.Filename) {
			return Result{Outcome: OutcomeSkipped}
		}

		start := time.Now()
		var size int64
		err := retry.Do(ctx, e.retry, func(ctx context.Context, attempt int) error {
			if err := e.limiter.Wait(ctx); err != nil {
				return err
			}
			fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			body, err := e.fetcher.Fetch(fetchCtx, job.Record.MediaURL)
			if err != nil {
				return err
			}
			defer body.Close()

			size, err = e.storage.SaveMedia(job.Dir, job.Filename, body)
			return err
		})
		duration := time.Since(start)

		logger.LogDownload(e.logger.WithField("worker_id", workerID), job.Filename, job.Record.MediaURL, err)
		if err != nil {
			return Result{Outcome: OutcomeFailed, Error: errs.Download("fetch", job.Filename, err), Duration: duration}
		}

		entry := models.HistoryEntry{PostURL: job.Record.PostURL, Filename: job.Filename}
		result := Result{Outcome: OutcomeDownloaded, Duration: duration, Size: size}
		if err := ledger.Append(ctx, entry); err != nil {
			e.logger.WithField("filename", job.Filename).WithError(err).Error("failed to record download in history")
			result.Error = errs.Download("record history", job.Filename, err)
		}
		return result
	}
}

func (e *Engine) record(outcome Outcome, d time.Duration, n int64) {
	if e.recorder != nil {
		e.recorder.RecordDownload(outcome, d, n)
	}
}

// String renders the summary for done messages
func (s Summary) String() string {
	msg := fmt.Sprintf("%d downloaded, %d skipped, %d failed", s.Downloaded, s.Skipped, s.Failed)
	if s.Cancelled > 0 {
		msg += fmt.Sprintf(", %d cancelled", s.Cancelled)
	}
	if s.Unrecorded > 0 {
		msg += fmt.Sprintf(", %d not recorded in history", s.Unrecorded)
	}
	return msg
}
