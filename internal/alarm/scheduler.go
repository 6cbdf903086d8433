package alarm

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"classattendance/internal/attendance"
	"classattendance/internal/pkg/clock"
	"classattendance/internal/pkg/errs"
)

// Scheduler arms weekly slot alarms and one-shot retries.
type Scheduler struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewScheduler creates a scheduler that keeps its alarms in store.
func NewScheduler(store Store, clk clock.Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{store: store, clock: clk, logger: logger.With("component", "alarm_scheduler")}
}

// Register arms the next weekly occurrence of slot, replacing any pending
// alarm for the same slot.
func (s *Scheduler) Register(ctx context.Context, slot attendance.Slot) error {
	if err := slot.Validate(); err != nil {
		return err
	}
	at := NextOccurrence(s.clock.Now(), slot.Weekday, slot.Hour, slot.Minute)
	if err := s.store.Put(ctx, Alarm{Key: SlotKey(slot.ID), FireAt: at, Payload: slot.Payload()}); err != nil {
		return err
	}
	s.logger.Debug("slot armed", "slot_id", slot.ID, "fire_at", at)
	return nil
}

// Cancel drops the pending alarm of slotID. Cancelling an unknown slot is a
// no-op.
func (s *Scheduler) Cancel(ctx context.Context, slotID int64) error {
	if err := s.store.Remove(ctx, SlotKey(slotID)); err != nil {
		return err
	}
	s.logger.Debug("slot cancelled", "slot_id", slotID)
	return nil
}

// RegisterRetry arms a one-shot redelivery of payload after delay. attempt is
// the attempt number the redelivery will carry.
func (s *Scheduler) RegisterRetry(ctx context.Context, payload attendance.SlotPayload, attempt int, delay time.Duration) error {
	id := payload.InvocationID
	if id == "" {
		id = uuid.NewString()
	}
	a := Alarm{
		Key:     RetryKey(id),
		FireAt:  s.clock.Now().Add(delay),
		Attempt: attempt,
		Payload: payload,
	}
	if err := s.store.Put(ctx, a); err != nil {
		return errs.Wrap(err, "arm retry")
	}
	s.logger.Info("retry armed", "invocation_id", id, "attempt", attempt, "fire_at", a.FireAt)
	return nil
}
