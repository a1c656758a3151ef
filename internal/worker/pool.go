package worker

import (
	"context"

	"supervisor-console/internal/logger"
)

// Job is a unit of background work, typically one upstream call.
type Job func(ctx context.Context)

// Pool runs jobs on a fixed number of goroutines.
type Pool struct {
	size int
	jobs chan Job
}

// NewPool creates a pool with size workers and room for queue waiting jobs.
func NewPool(size, queue int) *Pool {
	if size <= 0 {
		size = 1
	}
	if queue < 0 {
		queue = 0
	}
	return &Pool{
		size: size,
		jobs: make(chan Job, queue),
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	logger.Log.Debugf("Worker %d started", id)
	for {
		select {
		case job := <-p.jobs:
			p.run(ctx, id, job)
		case <-ctx.Done():
			logger.Log.Debugf("Worker %d shutting down", id)
			return
		}
	}
}

func (p *Pool) run(ctx context.Context, id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("Worker %d recovered from panic: %v", id, r)
		}
	}()
	job(ctx)
}

// TryDispatch queues job without blocking. It reports false when the queue is full.
func (p *Pool) TryDispatch(job Job) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (p *Pool) Jobs() chan Job {
	return p.jobs
}
