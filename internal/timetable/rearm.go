package timetable

import (
	"context"
	"log/slog"

	"classattendance/internal/attendance"
	"classattendance/internal/pkg/errs"
)

// LiveScheduler arms alarms only for slots still present in the timetable.
// The resolution job re-arms through it, so a slot deleted while its job was
// running stays deleted.
type LiveScheduler struct {
	repo   Repository
	next   attendance.AlarmScheduler
	logger *slog.Logger
}

// NewLiveScheduler wraps next with a timetable lookup.
func NewLiveScheduler(repo Repository, next attendance.AlarmScheduler, logger *slog.Logger) *LiveScheduler {
	return &LiveScheduler{repo: repo, next: next, logger: logger.With("component", "live_scheduler")}
}

// Register arms slot if it still exists. The slot is looked up again after
// arming: DeleteSlot removes the row before cancelling, so either that
// lookup sees the deletion or the cancel runs after the alarm was put.
func (l *LiveScheduler) Register(ctx context.Context, slot attendance.Slot) error {
	gone, err := l.gone(ctx, slot.ID)
	if err != nil {
		return err
	}
	if gone {
		l.logger.Info("slot no longer in timetable, not re-armed", "slot_id", slot.ID)
		return nil
	}

	if err := l.next.Register(ctx, slot); err != nil {
		return err
	}

	gone, err = l.gone(ctx, slot.ID)
	if err != nil {
		return err
	}
	if gone {
		l.logger.Info("slot deleted while arming, alarm dropped", "slot_id", slot.ID)
		return l.next.Cancel(ctx, slot.ID)
	}
	return nil
}

// Cancel drops the pending alarm of slotID.
func (l *LiveScheduler) Cancel(ctx context.Context, slotID int64) error {
	return l.next.Cancel(ctx, slotID)
}

func (l *LiveScheduler) gone(ctx context.Context, slotID int64) (bool, error) {
	_, err := l.repo.GetSlot(ctx, slotID)
	switch {
	case err == nil:
		return false, nil
	case errs.Is(err, errs.ErrNotFound):
		return true, nil
	default:
		return false, errs.Wrapf(err, "look up slot %d", slotID)
	}
}
