package worker

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"
)

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	Workers        int
	WorkerChanSize int
	JobTimeout     time.Duration
	MaxRetries     int
	RetryBase      time.Duration // backoff is RetryBase * 2^retries plus jitter
}

func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:        4,
		WorkerChanSize: 16,
		JobTimeout:     5 * time.Minute,
		MaxRetries:     2,
		RetryBase:      time.Second,
	}
}

// PoolMetrics holds pool metrics.
type PoolMetrics struct {
	JobsProcessed  int64 `json:"jobs_processed"`
	JobsFailed     int64 `json:"jobs_failed"`
	JobsRetried    int64 `json:"jobs_retried"`
	JobsRejected   int64 `json:"jobs_rejected"`
	AvgProcessTime int64 `json:"avg_process_ms"`
}

// Pool runs messages on a go-pkgz/pool worker group with per-job timeout and retry.
type Pool struct {
	processor Processor
	config    *PoolConfig
	log       zerolog.Logger

	group *pool.WorkerGroup[*Message]

	ctx    context.Context
	cancel context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
	rejected  atomic.Int64
	avgMs     atomic.Int64

	started bool
	retries sync.WaitGroup
	mu      sync.RWMutex
}

func NewPool(processor Processor, config *PoolConfig, log zerolog.Logger) *Pool {
	def := DefaultPoolConfig()
	if config == nil {
		config = def
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.WorkerChanSize <= 0 {
		config.WorkerChanSize = def.WorkerChanSize
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = def.JobTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBase <= 0 {
		config.RetryBase = def.RetryBase
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		processor: processor,
		config:    config,
		log:       log.With().Str("component", "worker_pool").Logger(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the worker group. Calling it twice is a no-op.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}

	worker := pool.WorkerFunc[*Message](p.processJob)
	p.group = pool.New[*Message](p.config.Workers, worker).
		WithWorkerChanSize(p.config.WorkerChanSize).
		WithContinueOnError()

	if err := p.group.Go(p.ctx); err != nil {
		return err
	}
	p.started = true

	p.log.Info().Int("workers", p.config.Workers).Msg("worker pool started")
	return nil
}

// Stop drains queued jobs, abandons pending retries and waits for workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()
	if err := p.group.Close(closeCtx); err != nil {
		p.log.Warn().Err(err).Msg("error closing worker pool")
	}
	p.cancel()
	p.retries.Wait()

	m := p.Metrics()
	p.log.Info().
		Int64("processed", m.JobsProcessed).
		Int64("failed", m.JobsFailed).
		Msg("worker pool stopped")
}

// Submit queues the message. It returns false once the pool is stopped.
func (p *Pool) Submit(msg *Message) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.started {
		p.rejected.Add(1)
		return false
	}
	p.group.Submit(msg)
	return true
}

func (p *Pool) processJob(ctx context.Context, msg *Message) error {
	start := time.Now()

	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()
	err := p.processor.Process(jobCtx, msg)

	p.updateAvgProcessTime(time.Since(start).Milliseconds())

	if err == nil {
		p.processed.Add(1)
		return nil
	}

	p.log.Error().
		Err(err).
		Str("job_id", msg.ID).
		Str("job_type", msg.Type).
		Str("user_id", msg.UserID).
		Int("retries", msg.Retries).
		Msg("job processing failed")

	if msg.Retries >= p.config.MaxRetries {
		p.failed.Add(1)
		return err
	}

	msg.Retries++
	p.retried.Add(1)
	backoff := p.config.RetryBase*time.Duration(1<<msg.Retries) +
		time.Duration(rand.Int63n(int64(p.config.RetryBase)/2+1))

	p.retries.Add(1)
	go func() {
		defer p.retries.Done()
		select {
		case <-p.ctx.Done():
			p.failed.Add(1)
		case <-time.After(backoff):
			if !p.Submit(msg) {
				p.failed.Add(1)
			}
		}
	}()
	return err
}

func (p *Pool) updateAvgProcessTime(elapsed int64) {
	current := p.avgMs.Load()
	if current == 0 {
		p.avgMs.Store(elapsed)
		return
	}
	p.avgMs.Store((current*9 + elapsed) / 10)
}

func (p *Pool) Metrics() PoolMetrics {
	return PoolMetrics{
		JobsProcessed:  p.processed.Load(),
		JobsFailed:     p.failed.Load(),
		JobsRetried:    p.retried.Load(),
		JobsRejected:   p.rejected.Load(),
		AvgProcessTime: p.avgMs.Load(),
	}
}
