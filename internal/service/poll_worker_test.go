package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/jobs"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/sqs"
)

type queueStub struct {
	mu       sync.Mutex
	batches  [][]sqs.Message
	errs     []error
	receives int
	deleted  []string
}

func (q *queueStub) Receive(ctx context.Context, max int) ([]sqs.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.receives++
	if len(q.errs) > 0 {
		err := q.errs[0]
		q.errs = q.errs[1:]
		return nil, err
	}
	if len(q.batches) == 0 {
		return nil, nil
	}
	batch := q.batches[0]
	q.batches = q.batches[1:]
	return batch, nil
}

func (q *queueStub) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, receiptHandle)
	return nil
}

func (q *queueStub) deletedHandles() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.deleted...)
}

func (q *queueStub) receiveCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.receives
}

type callbackStub struct {
	mu     sync.Mutex
	bodies []string
	errFor map[string]error
}

func (c *callbackStub) OnReceive(ctx context.Context, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodies = append(c.bodies, string(body))
	return c.errFor[string(body)]
}

type submitterStub struct {
	jobs []jobs.Job
	err  error
}

func (s *submitterStub) Submit(ctx context.Context, job jobs.Job) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func TestPollWorkerHandleJobDeletesOnSuccess(t *testing.T) {
	queue := &queueStub{}
	metrics := NewMetricsService()
	worker := NewPollWorker(queue, &callbackStub{}, PollWorkerConfig{Metrics: metrics})

	err := worker.HandleJob(context.Background(), jobs.Job{ID: "m1", Payload: sqs.Message{ID: "m1", ReceiptHandle: "rh-1", Body: "{}"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"rh-1"}, queue.deletedHandles())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.messagesProcessed.WithLabelValues(MessageSucceeded)))
}

func TestPollWorkerHandleJobLeavesFailedMessages(t *testing.T) {
	queue := &queueStub{}
	metrics := NewMetricsService()
	callback := &callbackStub{errFor: map[string]error{
		"retry": appErrors.Clone(appErrors.ErrGeneration, "1 of 2 studies failed"),
		"bad":   appErrors.Clone(appErrors.ErrParse, "decode report request"),
	}}
	worker := NewPollWorker(queue, callback, PollWorkerConfig{Metrics: metrics})

	err := worker.HandleJob(context.Background(), jobs.Job{ID: "m1", Payload: sqs.Message{ReceiptHandle: "rh-1", Body: "retry"}})
	require.Error(t, err)
	err = worker.HandleJob(context.Background(), jobs.Job{ID: "m2", Payload: sqs.Message{ReceiptHandle: "rh-2", Body: "bad"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrParse))

	assert.Empty(t, queue.deletedHandles())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.messagesProcessed.WithLabelValues(MessageRetry)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.messagesProcessed.WithLabelValues(MessageUnprocessable)))
}

func TestPollWorkerHandleJobRejectsForeignPayload(t *testing.T) {
	worker := NewPollWorker(&queueStub{}, &callbackStub{}, PollWorkerConfig{})
	assert.Error(t, worker.HandleJob(context.Background(), jobs.Job{ID: "x", Payload: "not a message"}))
}

func TestPollWorkerRunRequiresPool(t *testing.T) {
	worker := NewPollWorker(&queueStub{}, &callbackStub{}, PollWorkerConfig{})
	assert.Error(t, worker.Run(context.Background()))
}

func TestPollWorkerRunSubmitsReceivedMessages(t *testing.T) {
	queue := &queueStub{
		errs: []error{errors.New("throttled")},
		batches: [][]sqs.Message{
			{{ID: "m1", ReceiptHandle: "rh-1", Body: "a"}, {ReceiptHandle: "rh-2", Body: "b"}},
		},
	}
	submitter := &submitterStub{}
	metrics := NewMetricsService()
	worker := NewPollWorker(queue, &callbackStub{}, PollWorkerConfig{SleepTime: time.Millisecond, Metrics: metrics})
	worker.SetPool(submitter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	require.Eventually(t, func() bool { return queue.receiveCount() >= 4 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.Len(t, submitter.jobs, 2)
	assert.Equal(t, "m1", submitter.jobs[0].ID)
	assert.NotEmpty(t, submitter.jobs[1].ID)
	assert.Equal(t, JobTypeReportRequest, submitter.jobs[1].Type)
	assert.Equal(t, "b", submitter.jobs[1].Payload.(sqs.Message).Body)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.messagesReceived))
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.emptyPolls), 1.0)
}

func TestPollWorkerEndToEndThroughPool(t *testing.T) {
	queue := &queueStub{batches: [][]sqs.Message{
		{{ID: "m1", ReceiptHandle: "rh-1", Body: "ok"}, {ID: "m2", ReceiptHandle: "rh-2", Body: "fail"}},
	}}
	callback := &callbackStub{errFor: map[string]error{"fail": appErrors.Clone(appErrors.ErrDataAccess, "bridge down")}}
	worker := NewPollWorker(queue, callback, PollWorkerConfig{SleepTime: time.Millisecond})
	pool := jobs.NewPool("report-requests", worker.HandleJob, jobs.PoolConfig{Workers: 2})
	worker.SetPool(pool)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	require.Eventually(t, func() bool { return queue.receiveCount() >= 2 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	pool.Stop()

	assert.Equal(t, []string{"rh-1"}, queue.deletedHandles())
	assert.Len(t, callback.bodies, 2)
}
