package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrPoolStopped is returned by Submit once Stop has been called.
var ErrPoolStopped = errors.New("pool stopped")

// Job represents a unit of work handed to the pool.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Enqueued time.Time
}

// Handler processes a job. Errors are logged; retries are the caller's concern.
type Handler func(context.Context, Job) error

// PoolConfig configures worker pool behaviour.
type PoolConfig struct {
	Workers    int
	BufferSize int
	Logger     *zap.Logger
}

// Pool is a fixed-size goroutine pool. Stop drains queued and in-flight jobs
// instead of abandoning them.
type Pool struct {
	name    string
	handler Handler

	workers    int
	bufferSize int
	logger     *zap.Logger

	jobs    chan Job
	ctx     context.Context
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewPool builds a new pool with the provided handler.
func NewPool(name string, handler Handler, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 2
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Pool{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		bufferSize: cfg.BufferSize,
		logger:     cfg.Logger,
		jobs:       make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Safe to call once; handler contexts carry ctx's
// values but are not cancelled with it.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.ctx = context.WithoutCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i + 1)
	}
	p.started = true
	p.logger.Sugar().Infow("pool started", "pool", p.name, "workers", p.workers)
}

// Stop rejects new submissions and waits until every accepted job has finished.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.stopped = true
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Sugar().Infow("pool stopped", "pool", p.name)
}

// Submit hands a job to the pool, blocking while the buffer is full. ctx bounds
// only the wait, not the job.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		return fmt.Errorf("pool %s not started", p.name)
	}
	if p.stopped {
		return fmt.Errorf("pool %s: %w", p.name, ErrPoolStopped)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("pool %s submit: %w", p.name, ctx.Err())
	case p.jobs <- job:
		return nil
	}
}

func (p *Pool) worker(workerID int) {
	defer p.wg.Done()
	for job := range p.jobs {
		if err := p.run(job); err != nil {
			// Handlers log their own failures at warn or error; this is a trace only.
			p.logger.Sugar().Debugw("job failed", "pool", p.name, "worker", workerID, "job_id", job.ID, "type", job.Type, "error", err)
		}
	}
}

func (p *Pool) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Sugar().Errorw("job panicked", "pool", p.name, "job_id", job.ID, "type", job.Type, "panic", r)
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return p.handler(p.ctx, job)
}
