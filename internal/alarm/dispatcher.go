package alarm

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"classattendance/internal/metrics"
	"classattendance/internal/pkg/clock"
	"classattendance/internal/pkg/errs"
	"classattendance/internal/queue"
)

// Dispatcher moves due alarms onto the fire queue.
type Dispatcher struct {
	store    Store
	queue    queue.Queue
	clock    clock.Clock
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher polling store every interval.
func NewDispatcher(store Store, q queue.Queue, clk clock.Clock, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Dispatcher{
		store:    store,
		queue:    q,
		clock:    clk,
		interval: interval,
		metrics:  m,
		logger:   logger.With("component", "alarm_dispatcher"),
	}
}

// Run polls for due alarms until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started", "interval", d.interval)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return nil
		case <-ticker.C():
			if _, err := d.Tick(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("dispatch failed", "error", err)
			}
		}
	}
}

// Tick publishes every alarm due now and returns how many were published.
// An alarm that cannot be published is put back unchanged.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	now := d.clock.Now()
	due, popErr := d.store.PopDue(ctx, now)

	var errList []error
	if popErr != nil {
		errList = append(errList, popErr)
	}

	published := 0
	for _, a := range due {
		if err := d.publish(ctx, a); err != nil {
			errList = append(errList, err)
			if err := d.store.Put(context.WithoutCancel(ctx), a); err != nil {
				errList = append(errList, errs.Wrapf(err, "restore alarm %s", a.Key))
			}
			continue
		}
		published++
		d.metrics.ObserveDispatch(now.Sub(a.FireAt))
	}
	return published, errs.Combine(errList...)
}

func (d *Dispatcher) publish(ctx context.Context, a Alarm) error {
	payload := a.Payload
	payload.InvocationID = uuid.NewString()
	body, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(err, "encode slot payload")
	}
	msg := queue.Message{
		ID:      payload.InvocationID,
		Type:    queue.TypeSlotFired,
		Body:    body,
		Attempt: a.Attempt,
	}
	if err := d.queue.Publish(ctx, msg); err != nil {
		return errs.Wrapf(err, "publish alarm %s", a.Key)
	}
	d.logger.Debug("alarm fired", "key", a.Key, "invocation_id", msg.ID, "fire_at", a.FireAt)
	return nil
}
