package printer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus is where a print job stands.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusPrinting  JobStatus = "printing"
	StatusFailed    JobStatus = "failed"
	StatusCompleted JobStatus = "completed"
)

var (
	ErrPrintFailed  = errors.New("print failed")
	ErrQueueStopped = errors.New("print queue stopped")
)

const historySize = 50

// Job is a snapshot of one print job.
type Job struct {
	ID        string
	Status    JobStatus
	Attempts  int
	Bytes     int
	Err       error
	CreatedAt time.Time

	data []byte
	done chan error
}

// QueueOptions tunes retries and rasterization.
type QueueOptions struct {
	MaxRetries int           // attempts per job, at least 1
	Backoff    time.Duration // wait before the second attempt, doubled after each failure
	MaxDots    int           // print head width; wider images are scaled down
	Timeout    time.Duration // per attempt
}

// Queue sends jobs to one printer, one at a time, retrying failures.
type Queue struct {
	dialer Dialer
	opts   QueueOptions
	logger *slog.Logger

	jobs chan *Job

	mu      sync.Mutex
	history []*Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue starts a worker printing through dialer.
func NewQueue(dialer Dialer, opts QueueOptions, logger *slog.Logger) *Queue {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		dialer: dialer,
		opts:   opts,
		logger: logger.With("printer", dialer.String()),
		jobs:   make(chan *Job, 16),
		ctx:    ctx,
		cancel: cancel,
	}

	q.wg.Add(1)
	go q.worker()

	return q
}

// Print encodes img and waits for the job to finish. If ctx ends first the
// job stays queued and ctx's error is returned.
func (q *Queue) Print(ctx context.Context, img image.Image) error {
	job := &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		CreatedAt: time.Now(),
		data:      Encode(img, q.opts.MaxDots),
		done:      make(chan error, 1),
	}
	job.Bytes = len(job.data)

	select {
	case <-q.ctx.Done():
		return ErrQueueStopped
	default:
	}

	q.record(job)
	select {
	case q.jobs <- job:
	case <-ctx.Done():
		q.finish(job, ctx.Err())
		return ctx.Err()
	case <-q.ctx.Done():
		q.finish(job, ErrQueueStopped)
		return ErrQueueStopped
	}

	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.run(job)
		}
	}
}

func (q *Queue) run(job *Job) {
	backoff := q.opts.Backoff
	var err error

	for attempt := 1; attempt <= q.opts.MaxRetries; attempt++ {
		q.mu.Lock()
		job.Status = StatusPrinting
		job.Attempts = attempt
		q.mu.Unlock()

		if err = q.send(job.data); err == nil {
			q.logger.Info("print job completed", "job_id", job.ID, "attempts", attempt)
			q.finish(job, nil)
			return
		}

		if attempt == q.opts.MaxRetries {
			break
		}
		q.logger.Warn("print job failed, retrying",
			"job_id", job.ID, "attempt", attempt, "max", q.opts.MaxRetries, "error", err)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-q.ctx.Done():
			q.finish(job, ErrQueueStopped)
			return
		}
	}

	q.logger.Error("print job failed", "job_id", job.ID, "attempts", job.Attempts, "error", err)
	q.finish(job, fmt.Errorf("%w after %d attempts: %v", ErrPrintFailed, job.Attempts, err))
}

func (q *Queue) send(data []byte) error {
	ctx, cancel := context.WithTimeout(q.ctx, q.opts.Timeout)
	defer cancel()

	conn, err := q.dialer.Dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("failed to write to printer: %w", err)
	}
	return nil
}

func (q *Queue) record(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.history = append(q.history, job)
	if len(q.history) > historySize {
		q.history = q.history[len(q.history)-historySize:]
	}
}

func (q *Queue) finish(job *Job, err error) {
	q.mu.Lock()
	if err != nil {
		job.Status = StatusFailed
		job.Err = err
	} else {
		job.Status = StatusCompleted
	}
	q.mu.Unlock()

	job.done <- err
}

// Jobs returns copies of recent jobs, oldest first.
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, len(q.history))
	for i, job := range q.history {
		out[i] = Job{
			ID:        job.ID,
			Status:    job.Status,
			Attempts:  job.Attempts,
			Bytes:     job.Bytes,
			Err:       job.Err,
			CreatedAt: job.CreatedAt,
		}
	}
	return out
}

// Stop stops the worker. Jobs still waiting fail with ErrQueueStopped.
func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()

	for {
		select {
		case job := <-q.jobs:
			q.finish(job, ErrQueueStopped)
		default:
			return
		}
	}
}
