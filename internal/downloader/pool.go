package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"profilegrab/pkg/logger"
	"profilegrab/pkg/models"
)

// Job is one media file scheduled for download
type Job struct {
	Record   models.MediaRecord
	Filename string
	Dir      string
}

// Outcome classifies a finished job
type Outcome string

const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
	OutcomeCancelled  Outcome = "cancelled"
)

// Result represents the result of a download job
type Result struct {
	Job      Job
	Outcome  Outcome
	Error    error
	Duration time.Duration
	Size     int64
}

// ProcessFunc performs one job
type ProcessFunc func(ctx context.Context, job Job, workerID int) Result

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	stopOnce    sync.Once
	process     ProcessFunc
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool
func NewWorkerPool(numWorkers int, process ProcessFunc, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		process:     process,
		logger:      log,
	}
}

// Start launches the workers. Jobs run under ctx; dispatch is controlled
// separately by the context given to Submit.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.logger.DebugWithFields("starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Stop closes the queue, waits for the workers and closes Results.
// Must be called once every Submit has returned.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.jobQueue)
		wp.wg.Wait()
		close(wp.resultQueue)
	})
}

// Submit queues a job, giving up when ctx is done
func (wp *WorkerPool) Submit(ctx context.Context, job Job) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("dispatch stopped: %w", ctx.Err())
	default:
	}

	select {
	case wp.jobQueue <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch stopped: %w", ctx.Err())
	}
}

// Results returns the result channel. It must be drained concurrently with Submit.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

// QueueSize returns the number of jobs waiting for a worker
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		start := time.Now()
		result := wp.process(ctx, job, id)
		result.Job = job
		if result.Duration == 0 {
			result.Duration = time.Since(start)
		}
		wp.resultQueue <- result
	}

	wp.logger.DebugWithFields("worker stopping, queue closed", map[string]interface{}{
		"worker_id": id,
	})
}
