package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers   = 5
	DefaultQueueSize = 500
)

// Dispatcher fans repository paths out to a fixed pool of workers through a
// bounded queue and folds their outcomes into a Summary.
type Dispatcher struct {
	updater   RepositoryUpdater
	logger    *slog.Logger
	workers   int
	queueSize int
	include   []string
	exclude   []string
	observe   func(Outcome)
}

type DispatcherOption func(*Dispatcher)

func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		d.workers = n
	}
}

// WithQueueSize sets the capacity of both the work queue and the results channel.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		d.queueSize = n
	}
}

// WithNameFilter restricts Run to children whose names pass the include and
// exclude patterns (see FilterNames).
func WithNameFilter(include, exclude []string) DispatcherOption {
	return func(d *Dispatcher) {
		d.include = include
		d.exclude = exclude
	}
}

// WithObserver registers fn to be called once per outcome. Calls come from a
// single goroutine, in completion order.
func WithObserver(fn func(Outcome)) DispatcherOption {
	return func(d *Dispatcher) {
		d.observe = fn
	}
}

func NewDispatcher(u RepositoryUpdater, logger *slog.Logger, opts ...DispatcherOption) (*Dispatcher, error) {
	if u == nil {
		return nil, errors.New("updater is nil")
	}
	if logger == nil {
		return nil, errors.New("logger is nil")
	}
	d := &Dispatcher{
		updater:   u,
		logger:    logger,
		workers:   DefaultWorkers,
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers <= 0 {
		return nil, fmt.Errorf("workers must be >= 1, got %d", d.workers)
	}
	if d.queueSize <= 0 {
		return nil, fmt.Errorf("queue size must be >= 1, got %d", d.queueSize)
	}
	return d, nil
}

// Run updates every immediate child of parentDir. Only a failure to list
// parentDir is returned as an error; per-repository problems are reflected in
// the Summary.
func (d *Dispatcher) Run(ctx context.Context, parentDir, branch string) (Summary, error) {
	paths, err := ListCandidates(parentDir, d.include, d.exclude)
	if err != nil {
		return Summary{}, err
	}
	d.logger.Debug("Listed candidates", "parent", parentDir, "count", len(paths))
	return d.Dispatch(ctx, paths, branch), nil
}

// Dispatch runs the worker pool over paths and blocks until every path has
// produced exactly one Outcome.
//
// Channel semantics:
//   - The producer blocks while the work queue is full.
//   - Closing the work queue is the only worker termination signal.
//   - Results are drained concurrently with the workers, so a results channel
//     smaller than len(paths) cannot deadlock the pool.
//   - After ctx is cancelled, remaining paths are still dequeued and reported
//     as StatusFailed with the context error.
func (d *Dispatcher) Dispatch(ctx context.Context, paths []string, branch string) Summary {
	start := time.Now()

	queue := make(chan string, d.queueSize)
	results := make(chan Outcome, d.queueSize)

	// A worker returns the context error when it had to fail tasks because
	// the run was cancelled; the pool itself never stops early.
	var g errgroup.Group
	for i := range d.workers {
		id := i + 1
		g.Go(func() error {
			return d.work(ctx, id, queue, results, branch)
		})
	}

	var summary Summary
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for o := range results {
			summary.add(o)
			if d.observe != nil {
				d.observe(o)
			}
		}
	}()

	for _, p := range paths {
		queue <- p
	}
	close(queue)

	poolErr := g.Wait()
	close(results)
	<-collected

	if poolErr != nil {
		d.logger.Warn("Run cancelled, remaining repositories reported as failed", "error", poolErr)
	}

	summary.Duration = time.Since(start)
	return summary
}

func (d *Dispatcher) work(ctx context.Context, id int, queue <-chan string, results chan<- Outcome, branch string) error {
	log := d.logger.With("worker", id)
	ctx = withLogger(ctx, log)
	log.Debug("Worker started")

	var cancelled error
	for path := range queue {
		o := d.process(ctx, log, path, branch)
		if err := ctx.Err(); err != nil && cancelled == nil && o.Status == StatusFailed && errors.Is(o.Err, err) {
			cancelled = ctx.Err()
		}
		results <- o
	}
	log.Debug("Worker finished")
	return cancelled
}

func (d *Dispatcher) process(ctx context.Context, log *slog.Logger, path, branch string) (o Outcome) {
	if err := ctx.Err(); err != nil {
		log.Error("Run cancelled, not updating", "path", path, "error", err)
		return failed(path, err)
	}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic while updating: %v", r)
			log.Error("Failed to update", "path", path, "error", err)
			o = failed(path, err)
		}
	}()
	return d.updater.Update(ctx, path, branch)
}
