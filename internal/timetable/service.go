package timetable

import (
	"context"
	"log/slog"
	"time"

	"classattendance/internal/attendance"
	"classattendance/internal/pkg/errs"
)

// Service coordinates the timetable with the alarm schedule and the ledger.
type Service struct {
	repo   Repository
	logs   attendance.LogStore
	alarms attendance.AlarmScheduler
	logger *slog.Logger
}

func NewService(repo Repository, logs attendance.LogStore, alarms attendance.AlarmScheduler, logger *slog.Logger) *Service {
	return &Service{repo: repo, logs: logs, alarms: alarms, logger: logger.With("component", "timetable")}
}

// CreateSubject stores a subject under its trimmed name.
func (s *Service) CreateSubject(ctx context.Context, name string) (Subject, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Subject{}, err
	}
	return s.repo.CreateSubject(ctx, name)
}

// Subjects lists every subject with its attendance percentage.
func (s *Service) Subjects(ctx context.Context) ([]SubjectSummary, error) {
	subjects, err := s.repo.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]SubjectSummary, 0, len(subjects))
	for _, subj := range subjects {
		t, err := s.logs.Tally(ctx, subj.ID)
		if err != nil {
			return nil, err
		}
		res = append(res, SubjectSummary{Subject: subj, Present: t.Present, Total: t.Total, Percentage: t.Percentage})
	}
	return res, nil
}

// AddSlot stores a slot and arms its alarm. The slot is removed again if
// the alarm cannot be armed.
func (s *Service) AddSlot(ctx context.Context, in NewSlot) (attendance.Slot, error) {
	subj, err := s.repo.GetSubject(ctx, in.SubjectID)
	if err != nil {
		return attendance.Slot{}, err
	}
	slot := attendance.Slot{
		SubjectID:   subj.ID,
		SubjectName: subj.Name,
		Hour:        in.Hour,
		Minute:      in.Minute,
		Weekday:     in.Weekday,
	}
	if err := slot.Validate(); err != nil {
		return attendance.Slot{}, err
	}

	slot, err = s.repo.CreateSlot(ctx, slot)
	if err != nil {
		return attendance.Slot{}, err
	}
	slot.SubjectName = subj.Name

	if err := s.alarms.Register(ctx, slot); err != nil {
		rollbackErr := s.repo.DeleteSlot(context.WithoutCancel(ctx), slot.ID)
		return attendance.Slot{}, errs.Combine(errs.Wrap(err, "arm slot alarm"), rollbackErr)
	}
	s.logger.Info("slot added", "slot_id", slot.ID, "subject_id", slot.SubjectID, "weekday", slot.Weekday, "hour", slot.Hour, "minute", slot.Minute)
	return slot, nil
}

// DeleteSlot removes a slot and cancels its alarm.
func (s *Service) DeleteSlot(ctx context.Context, id int64) error {
	if err := s.repo.DeleteSlot(ctx, id); err != nil {
		return err
	}
	return errs.Wrap(s.alarms.Cancel(ctx, id), "cancel slot alarm")
}

// DeleteSubject removes the subject, its slots with their alarms, and its
// attendance history.
func (s *Service) DeleteSubject(ctx context.Context, id int64) error {
	if _, err := s.repo.GetSubject(ctx, id); err != nil {
		return err
	}
	slots, err := s.repo.ListSlots(ctx, &id)
	if err != nil {
		return err
	}

	var errList []error
	for _, slot := range slots {
		if err := s.repo.DeleteSlot(ctx, slot.ID); err != nil && !errs.Is(err, errs.ErrNotFound) {
			errList = append(errList, err)
			continue
		}
		if err := s.alarms.Cancel(ctx, slot.ID); err != nil {
			errList = append(errList, errs.Wrapf(err, "cancel alarm of slot %d", slot.ID))
		}
	}
	if err := s.logs.DeleteBySubject(ctx, id); err != nil {
		errList = append(errList, err)
	}
	if err := errs.Combine(errList...); err != nil {
		return err
	}
	if err := s.repo.DeleteSubject(ctx, id); err != nil {
		return err
	}
	s.logger.Info("subject deleted", "subject_id", id, "slots", len(slots))
	return nil
}

// Week groups every slot by weekday, Sunday first. Every weekday is present
// even when it has no slots.
func (s *Service) Week(ctx context.Context) ([]Day, error) {
	slots, err := s.repo.ListSlots(ctx, nil)
	if err != nil {
		return nil, err
	}
	sortSlots(slots)

	week := make([]Day, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		week[d] = Day{Weekday: d, Name: d.String(), Slots: []attendance.Slot{}}
	}
	for _, slot := range slots {
		week[slot.Weekday].Slots = append(week[slot.Weekday].Slots, slot)
	}
	return week, nil
}

// RearmAll registers the alarm of every stored slot. Run at worker start so
// a fresh alarm store matches the timetable.
func (s *Service) RearmAll(ctx context.Context) (int, error) {
	slots, err := s.repo.ListSlots(ctx, nil)
	if err != nil {
		return 0, err
	}
	var errList []error
	armed := 0
	for _, slot := range slots {
		if err := s.alarms.Register(ctx, slot); err != nil {
			errList = append(errList, errs.Wrapf(err, "arm slot %d", slot.ID))
			continue
		}
		armed++
	}
	return armed, errs.Combine(errList...)
}
