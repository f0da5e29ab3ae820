package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/jobs"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/sqs"
)

// JobTypeReportRequest labels pool jobs carrying a queue message.
const JobTypeReportRequest = "report_request"

type messageQueue interface {
	Receive(ctx context.Context, max int) ([]sqs.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type messageCallback interface {
	OnReceive(ctx context.Context, body []byte) error
}

type jobSubmitter interface {
	Submit(ctx context.Context, job jobs.Job) error
}

// PollWorkerConfig tunes the receive loop.
type PollWorkerConfig struct {
	MaxMessages int
	SleepTime   time.Duration
	Metrics     *MetricsService
	Logger      *zap.Logger
}

// PollWorker receives request messages and hands each to the dispatch pool.
// Messages are deleted only after the callback succeeds; anything else is left
// on the queue to reappear after its visibility timeout.
type PollWorker struct {
	queue       messageQueue
	callback    messageCallback
	pool        jobSubmitter
	maxMessages int
	sleepTime   time.Duration
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewPollWorker constructs the worker. SetPool must be called before Run.
func NewPollWorker(queue messageQueue, callback messageCallback, cfg PollWorkerConfig) *PollWorker {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &PollWorker{
		queue:       queue,
		callback:    callback,
		maxMessages: cfg.MaxMessages,
		sleepTime:   cfg.SleepTime,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// SetPool attaches the pool whose handler is HandleJob.
func (w *PollWorker) SetPool(pool jobSubmitter) {
	w.pool = pool
}

// Run polls until ctx is cancelled. Receive failures are logged and
// followed by the sleep interval; they never end the loop.
func (w *PollWorker) Run(ctx context.Context) error {
	if w.pool == nil {
		return errors.New("poll worker has no pool")
	}
	w.logger.Info("poll worker started", zap.Int("max_messages", w.maxMessages), zap.Duration("sleep", w.sleepTime))
	for {
		if ctx.Err() != nil {
			w.logger.Info("poll worker stopped")
			return nil
		}

		messages, err := w.queue.Receive(ctx, w.maxMessages)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Error("receive failed", zap.Error(err))
			}
			w.sleep(ctx)
			continue
		}
		w.metrics.ObserveReceived(len(messages))
		if len(messages) == 0 {
			w.sleep(ctx)
			continue
		}

		for _, msg := range messages {
			id := msg.ID
			if id == "" {
				id = uuid.NewString()
			}
			job := jobs.Job{ID: id, Type: JobTypeReportRequest, Payload: msg, Enqueued: time.Now()}
			if err := w.pool.Submit(ctx, job); err != nil {
				// Unsubmitted messages are redelivered once their visibility expires.
				w.logger.Warn("message not dispatched", zap.String("message_id", id), zap.Error(err))
				break
			}
		}
	}
}

func (w *PollWorker) sleep(ctx context.Context) {
	if w.sleepTime <= 0 {
		return
	}
	timer := time.NewTimer(w.sleepTime)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// HandleJob is the pool handler: run the callback, then delete on success.
func (w *PollWorker) HandleJob(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(sqs.Message)
	if !ok {
		return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
	}
	logger := w.logger.With(zap.String("message_id", job.ID), zap.String("receive_count", msg.ReceiveCount))

	err := w.callback.OnReceive(ctx, []byte(msg.Body))
	switch {
	case err == nil:
		if delErr := w.queue.Delete(ctx, msg.ReceiptHandle); delErr != nil {
			// The reports are already published; a redelivery only rewrites them.
			logger.Warn("delete after success failed", zap.Error(delErr))
		}
		w.metrics.ObserveMessage(MessageSucceeded)
		logger.Info("message processed")
		return nil
	case !appErrors.IsRetryable(err):
		w.metrics.ObserveMessage(MessageUnprocessable)
		logger.Error("message unprocessable, leaving for dead-letter redrive", zap.String("body", msg.Body), zap.Error(err))
	default:
		w.metrics.ObserveMessage(MessageRetry)
		logger.Warn("message failed, leaving for redelivery", zap.Error(err))
	}
	return err
}
