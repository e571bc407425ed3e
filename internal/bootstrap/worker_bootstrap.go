package bootstrap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sanskarm7/JobCATGmail/adapter/in/worker"
	"github.com/sanskarm7/JobCATGmail/adapter/out/messaging"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

// Worker runs background syncs: stream consumer, pool and scheduler.
type Worker struct {
	pool      *worker.Pool
	consumer  *messaging.Consumer
	scheduler *worker.BackgroundSyncScheduler
	deps      *Dependencies
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	zlog      zerolog.Logger
}

func NewWorker(deps *Dependencies) *Worker {
	cfg := deps.Config
	zlog := logger.Default().Zerolog().With().Str("component", "worker").Logger()

	processor := worker.NewSyncProcessor(deps.SyncService, deps.Sinks, deps.FeedPusher)
	pool := worker.NewPool(worker.NewHandler(processor), &worker.PoolConfig{
		Workers:        cfg.WorkerCount,
		WorkerChanSize: cfg.WorkerQueueSize,
		JobTimeout:     cfg.WorkerJobTimeout,
		MaxRetries:     cfg.WorkerMaxRetries,
	}, zlog)

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		pool:   pool,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		zlog:   zlog,
	}

	if deps.Redis != nil {
		w.consumer = messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
			Group:                cfg.ConsumerGroup,
			Consumer:             cfg.WorkerID,
			Streams:              []string{messaging.StreamSync},
			Handler:              worker.NewStreamHandler(pool),
			Logger:               zlog,
			PendingCheckInterval: time.Duration(cfg.ConsumerPendingCheckSec) * time.Second,
			MaxRetries:           cfg.ConsumerMaxRetries,
		})
		logger.Info("[Worker] consuming %s as %s/%s", messaging.StreamSync, cfg.ConsumerGroup, cfg.WorkerID)
	} else {
		// no queue: jobs go straight to the in-process pool
		deps.UseProducer(worker.NewLocalProducer(pool))
		logger.Warn("[Worker] Redis not available, jobs are submitted in-process")
	}

	if cfg.SchedulerEnabled {
		w.scheduler = worker.NewBackgroundSyncScheduler(deps.Mailboxes, deps.MessageProducer, cfg.SchedulerInterval)
	}
	return w
}

// Start launches the pool and its feeders and returns immediately.
func (w *Worker) Start() error {
	if err := w.pool.Start(); err != nil {
		return err
	}

	if w.consumer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Run(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.zlog.Error().Err(err).Msg("stream consumer stopped")
			}
		}()
	}

	if w.scheduler != nil {
		w.scheduler.Start(w.ctx)
		w.zlog.Info().Msg("background sync scheduler started")
	}
	return nil
}

func (w *Worker) Stop() {
	w.cancel()
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
	w.wg.Wait()
	w.pool.Stop()
}

func (w *Worker) Metrics() worker.PoolMetrics {
	return w.pool.Metrics()
}
