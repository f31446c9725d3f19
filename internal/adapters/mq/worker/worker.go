// Package worker runs model inference on a fixed set of workers, each owning
// one non-reentrant Runner.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/oralscan/internal/adapters/mq/queue"
	"github.com/okian/oralscan/internal/domain/model"
	"github.com/okian/oralscan/pkg/logger"
	"github.com/okian/oralscan/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Runner executes one forward pass. Implementations are not required to be
// safe for concurrent use; the pool never calls one Runner from two goroutines.
type Runner interface {
	Run(input model.Tensor) (model.Distribution, error)
	Close() error
}

// Queue defines how the pool hands jobs to workers.
type Queue interface {
	Enqueue(ctx context.Context, j queue.Job) error
	Dequeue(ctx context.Context) <-chan queue.Job
	Len(ctx context.Context) int
	Close() error
}

// InMemoryWorker drains jobs through its own Runner.
type InMemoryWorker struct {
	queue  Queue
	runner Runner
	name   string
	width  int
	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a worker. A positive width enforces the output length.
func NewInMemoryWorker(q Queue, runner Runner, width int, name string) *InMemoryWorker {
	return &InMemoryWorker{
		queue:  q,
		runner: runner,
		name:   name,
		width:  width,
		done:   make(chan struct{}),
		logger: logger.Get().Named(name),
	}
}

// Run processes jobs until the queue is closed and drained or ctx is canceled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(job)
		}
	}
}

func (w *InMemoryWorker) process(job queue.Job) {
	// The caller may have left while the job waited.
	if err := job.Ctx.Err(); err != nil {
		job.Reply <- queue.Result{Err: err}
		return
	}

	metrics.WorkerBusy(1)
	defer metrics.WorkerBusy(-1)

	dist, err := w.runner.Run(job.Input)
	if err == nil && w.width > 0 && len(dist) != w.width {
		err = fmt.Errorf("%w: got %d scores, want %d", ErrOutputSize, len(dist), w.width)
	}
	metrics.RecordWorkerJob(err)

	if err != nil {
		w.logger.Error(job.Ctx, "inference failed", logger.Error(err))
		job.Reply <- queue.Result{Err: err}
		return
	}
	job.Reply <- queue.Result{Distribution: dist}
}

// Pool fans inference jobs out to its workers.
type Pool struct {
	workers []*InMemoryWorker
	runners []Runner
	queue   Queue
	width   int

	startOnce sync.Once
	stopOnce  sync.Once

	logger logger.Logger
}

// NewPool creates a pool with one worker per runner.
func NewPool(runners []Runner, q Queue, opts ...Option) (*Pool, error) {
	if len(runners) == 0 {
		return nil, ErrNoRunners
	}

	p := &Pool{
		runners: runners,
		queue:   q,
		logger:  logger.Get().Named("inference-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.workers = make([]*InMemoryWorker, len(runners))
	for i, r := range runners {
		p.workers[i] = NewInMemoryWorker(q, r, p.width, "inference-worker-"+strconv.Itoa(i))
	}

	metrics.UpdateWorkerCount(len(runners))
	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Pending returns the number of jobs waiting for a worker.
func (p *Pool) Pending(ctx context.Context) int { return p.queue.Len(ctx) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for _, w := range p.workers {
			go w.Run(ctx)
		}
		p.logger.Info(ctx, "inference pool started", logger.Int("workers", len(p.workers)))
	})
}

// Classify runs one inference and waits for its result. A saturated queue
// fails fast with ErrBusy instead of waiting.
func (p *Pool) Classify(ctx context.Context, input model.Tensor) (model.Distribution, error) {
	job := queue.NewJob(ctx, input)
	if err := p.queue.Enqueue(ctx, job); err != nil {
		switch {
		case errors.Is(err, queue.ErrFull):
			return nil, fmt.Errorf("%w: %w", ErrBusy, err)
		case errors.Is(err, queue.ErrClosed):
			return nil, fmt.Errorf("%w: %w", ErrStopped, err)
		default:
			return nil, err
		}
	}

	select {
	case res := <-job.Reply:
		return res.Distribution, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown closes the queue, lets workers drain what was already accepted,
// then releases every Runner.
func (p *Pool) Shutdown(ctx context.Context) error {
	var errs []error
	p.stopOnce.Do(func() {
		if err := p.queue.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()

		drained := true
		for i, w := range p.workers {
			select {
			case <-w.done:
			case <-shutdownCtx.Done():
				drained = false
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			}
		}
		// A runner still in use by a stuck worker must not be freed under it.
		if !drained {
			errs = append(errs, fmt.Errorf("inference pool shutdown: %w", shutdownCtx.Err()))
			return
		}
		for _, r := range p.runners {
			if err := r.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		metrics.UpdateWorkerCount(0)
	})
	return errors.Join(errs...)
}
