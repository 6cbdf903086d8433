package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"classattendance/internal/attendance"
	"classattendance/internal/metrics"
	"classattendance/internal/pkg/errs"
	"classattendance/internal/queue"
)

// Job resolves one fired slot.
type Job interface {
	Run(ctx context.Context, payload attendance.SlotPayload) (attendance.Report, error)
}

// Retrier re-arms a payload the job asked to retry.
type Retrier interface {
	RegisterRetry(ctx context.Context, payload attendance.SlotPayload, attempt int, delay time.Duration) error
}

// Options tune the consumer.
type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Concurrency int
}

// Consumer feeds fire messages to the resolution job.
type Consumer struct {
	queue   queue.Queue
	job     Job
	retrier Retrier
	metrics *metrics.Metrics
	opts    Options
	logger  *slog.Logger
}

// NewConsumer creates a consumer reading fire messages from q.
func NewConsumer(q queue.Queue, job Job, retrier Retrier, m *metrics.Metrics, opts Options, logger *slog.Logger) *Consumer {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Consumer{
		queue:   q,
		job:     job,
		retrier: retrier,
		metrics: m,
		opts:    opts,
		logger:  logger.With("component", "consumer"),
	}
}

// Run consumes until ctx is done and waits for in-flight jobs.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.queue.Consume(ctx)
	if err != nil {
		return errs.Wrap(err, "consume fire queue")
	}

	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)

	c.logger.Info("consumer started", "concurrency", c.opts.Concurrency)
	for msg := range msgs {
		g.Go(func() error {
			c.Handle(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()
	c.logger.Info("consumer stopped")
	return nil
}

// Handle processes one message. Failures are logged, never returned, so one
// bad message cannot stop the consumer.
func (c *Consumer) Handle(ctx context.Context, msg queue.Message) {
	log := c.logger.With("message_id", msg.ID, "attempt", msg.Attempt)
	if msg.Type != queue.TypeSlotFired {
		log.Warn("ignoring message", "type", msg.Type)
		return
	}

	var payload attendance.SlotPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		log.Error("dropping undecodable slot payload", "error", err)
		c.metrics.ObserveResolution(string(attendance.StatusFailure), "", "", 0)
		return
	}
	if payload.InvocationID == "" {
		payload.InvocationID = msg.ID
	}

	report, err := c.job.Run(ctx, payload)
	c.metrics.ObserveResolution(string(report.Status), string(report.Outcome), string(report.Cause), report.FixWait)

	switch report.Status {
	case attendance.StatusSuccess:
		return
	case attendance.StatusRetry:
		c.retry(ctx, log, payload, msg.Attempt, err)
	default:
		log.Error("resolution failed", "error", err)
	}
}

func (c *Consumer) retry(ctx context.Context, log *slog.Logger, payload attendance.SlotPayload, attempt int, cause error) {
	next := attempt + 1
	if next >= c.opts.MaxAttempts {
		log.Error("giving up on slot payload", "attempts", next, "error", cause)
		return
	}
	delay := c.opts.RetryDelay * time.Duration(1<<attempt)
	if err := c.retrier.RegisterRetry(context.WithoutCancel(ctx), payload, next, delay); err != nil {
		log.Error("failed to arm retry", "error", err, "cause", cause)
		return
	}
	log.Warn("slot payload rejected, retry armed", "next_attempt", next, "delay", delay, "error", cause)
}

// Dispatcher is the alarm poller run next to the consumer.
type Dispatcher interface {
	Run(ctx context.Context) error
}

// Run drives the dispatcher and the consumer until ctx is done or either
// fails.
func Run(ctx context.Context, d Dispatcher, c *Consumer) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.Run(ctx) })
	g.Go(func() error { return c.Run(ctx) })
	return g.Wait()
}
