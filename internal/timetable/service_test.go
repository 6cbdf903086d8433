package timetable_test

import (
	"context"
	"testing"
	"time"

	"classattendance/internal/alarm"
	"classattendance/internal/attendance"
	"classattendance/internal/attendance/mock"
	"classattendance/internal/location"
	"classattendance/internal/logger"
	"classattendance/internal/netcheck"
	"classattendance/internal/notify"
	"classattendance/internal/pkg/clock"
	"classattendance/internal/pkg/errs"
	"classattendance/internal/refpoint"
	"classattendance/internal/timetable"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type ServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	repo   *timetable.MemoryRepository
	logs   *attendance.MemoryLedger
	alarms *mock.MockAlarmScheduler
	svc    *timetable.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.ctx = context.Background()
	s.repo = timetable.NewMemoryRepository()
	s.logs = attendance.NewMemoryLedger()
	s.alarms = mock.NewMockAlarmScheduler(ctrl)
	s.svc = timetable.NewService(s.repo, s.logs, s.alarms, logger.Discard())
}

func (s *ServiceTestSuite) subject(name string) timetable.Subject {
	subj, err := s.svc.CreateSubject(s.ctx, name)
	s.Require().NoError(err)
	return subj
}

func (s *ServiceTestSuite) TestCreateSubjectTrimsName() {
	subj := s.subject("  Operating Systems ")
	s.Equal("Operating Systems", subj.Name)

	_, err := s.svc.CreateSubject(s.ctx, "   ")
	s.True(errs.Is(err, errs.ErrInvalidSlot))
}

func (s *ServiceTestSuite) TestAddSlotArmsAlarm() {
	subj := s.subject("Algebra")
	var armed attendance.Slot
	s.alarms.EXPECT().Register(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, slot attendance.Slot) error {
		armed = slot
		return nil
	})

	slot, err := s.svc.AddSlot(s.ctx, timetable.NewSlot{SubjectID: subj.ID, Weekday: time.Wednesday, Hour: 8, Minute: 15})
	s.Require().NoError(err)
	s.Equal(attendance.Slot{ID: slot.ID, SubjectID: subj.ID, SubjectName: "Algebra", Hour: 8, Minute: 15, Weekday: time.Wednesday}, slot)
	s.Equal(slot, armed)
}

func (s *ServiceTestSuite) TestAddSlotValidates() {
	subj := s.subject("Algebra")
	_, err := s.svc.AddSlot(s.ctx, timetable.NewSlot{SubjectID: subj.ID, Weekday: time.Wednesday, Hour: 25})
	s.True(errs.Is(err, errs.ErrInvalidSlot))

	_, err = s.svc.AddSlot(s.ctx, timetable.NewSlot{SubjectID: 99, Weekday: time.Wednesday, Hour: 8})
	s.True(errs.Is(err, errs.ErrNotFound))
}

func (s *ServiceTestSuite) TestAddSlotRollsBackWhenAlarmFails() {
	subj := s.subject("Algebra")
	s.alarms.EXPECT().Register(gomock.Any(), gomock.Any()).Return(errs.New("store down"))

	_, err := s.svc.AddSlot(s.ctx, timetable.NewSlot{SubjectID: subj.ID, Weekday: time.Monday, Hour: 9})
	s.Require().Error(err)

	slots, err := s.repo.ListSlots(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(slots)
}

func (s *ServiceTestSuite) TestDeleteSlotCancelsAlarm() {
	subj := s.subject("Algebra")
	s.alarms.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil)
	slot, err := s.svc.AddSlot(s.ctx, timetable.NewSlot{SubjectID: subj.ID, Weekday: time.Monday, Hour: 9})
	s.Require().NoError(err)

	s.alarms.EXPECT().Cancel(gomock.Any(), slot.ID).Return(nil)
	s.Require().NoError(s.svc.DeleteSlot(s.ctx, slot.ID))

	err = s.svc.DeleteSlot(s.ctx, slot.ID)
	s.True(errs.Is(err, errs.ErrNotFound))
}

func (s *ServiceTestSuite) TestDeleteSubjectRemovesEverything() {
	keep := s.subject("Keep")
	drop := s.subject("Drop")
	s.alarms.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil).Times(3)
	a, err := s.svc.AddSlot(s.ctx, timetable.NewSlot{SubjectID: drop.ID, Weekday: time.Monday, Hour: 9})
	s.Require().NoError(err)
	b, err := s.svc.AddSlot(s.ctx, timetable.NewSlot{SubjectID: drop.ID, Weekday: time.Friday, Hour: 9})
	s.Require().NoError(err)
	_, err = s.svc.AddSlot(s.ctx, timetable.NewSlot{SubjectID: keep.ID, Weekday: time.Friday, Hour: 11})
	s.Require().NoError(err)

	for _, subjectID := range []int64{drop.ID, keep.ID} {
		_, err := s.logs.Append(s.ctx, attendance.Record{SubjectID: subjectID, Timestamp: time.Now(), WasPresent: true})
		s.Require().NoError(err)
	}

	s.alarms.EXPECT().Cancel(gomock.Any(), a.ID).Return(nil)
	s.alarms.EXPECT().Cancel(gomock.Any(), b.ID).Return(nil)
	s.Require().NoError(s.svc.DeleteSubject(s.ctx, drop.ID))

	summaries, err := s.svc.Subjects(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(summaries, 1)
	s.Equal(keep.ID, summaries[0].ID)
	s.Equal(100.0, summaries[0].Percentage)

	slots, err := s.repo.ListSlots(s.ctx, nil)
	s.Require().NoError(err)
	s.Len(slots, 1)

	logs, err := s.logs.List(s.ctx, attendance.LogFilter{})
	s.Require().NoError(err)
	s.Len(logs, 1)
}

func (s *ServiceTestSuite) TestSubjectsPercentage() {
	subj := s.subject("Graphs")
	for _, present := range []bool{true, false, false} {
		_, err := s.logs.Append(s.ctx, attendance.Record{SubjectID: subj.ID, Timestamp: time.Now(), WasPresent: present})
		s.Require().NoError(err)
	}
	empty := s.subject("Empty")

	summaries, err := s.svc.Subjects(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(summaries, 2)
	s.Equal(empty.ID, summaries[0].ID)
	s.Zero(summaries[0].Percentage)
	s.Equal(33.33, summaries[1].Percentage)
	s.Equal(3, summaries[1].Total)
}

func (s *ServiceTestSuite) TestWeekGroupsByDay() {
	subj := s.subject("Logic")
	s.alarms.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil).Times(3)
	for _, in := range []timetable.NewSlot{
		{SubjectID: subj.ID, Weekday: time.Tuesday, Hour: 14},
		{SubjectID: subj.ID, Weekday: time.Tuesday, Hour: 8, Minute: 30},
		{SubjectID: subj.ID, Weekday: time.Saturday, Hour: 10},
	} {
		_, err := s.svc.AddSlot(s.ctx, in)
		s.Require().NoError(err)
	}

	week, err := s.svc.Week(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(week, 7)
	s.Equal("Sunday", week[0].Name)
	s.Empty(week[0].Slots)
	s.Require().Len(week[time.Tuesday].Slots, 2)
	s.Equal(8, week[time.Tuesday].Slots[0].Hour)
	s.Equal("Logic", week[time.Tuesday].Slots[0].SubjectName)
	s.Len(week[time.Saturday].Slots, 1)
}

func (s *ServiceTestSuite) TestRearmAll() {
	subj := s.subject("Logic")
	s.alarms.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	_, err := s.svc.AddSlot(s.ctx, timetable.NewSlot{SubjectID: subj.ID, Weekday: time.Monday, Hour: 9})
	s.Require().NoError(err)
	_, err = s.svc.AddSlot(s.ctx, timetable.NewSlot{SubjectID: subj.ID, Weekday: time.Friday, Hour: 9})
	s.Require().NoError(err)

	s.alarms.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil)
	s.alarms.EXPECT().Register(gomock.Any(), gomock.Any()).Return(errs.New("boom"))
	armed, err := s.svc.RearmAll(s.ctx)
	s.Error(err)
	s.Equal(1, armed)
}

// rearmFixture wires the timetable, a real alarm scheduler and the job the
// way the worker does.
type rearmFixture struct {
	clock *clock.MockClock
	store *alarm.MemoryStore
	svc   *timetable.Service
	job   *attendance.ResolutionJob
}

func newRearmFixture(repo timetable.Repository) rearmFixture {
	log := logger.Discard()
	// Monday 09:00.
	clk := clock.NewMockClock(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))
	ledger := attendance.NewMemoryLedger()
	store := alarm.NewMemoryStore()
	sched := alarm.NewScheduler(store, clk, log)
	return rearmFixture{
		clock: clk,
		store: store,
		svc:   timetable.NewService(repo, ledger, sched, log),
		job: attendance.NewResolutionJob(
			location.NewHub(),
			refpoint.NewMemoryStore(),
			ledger,
			notify.NewMemoryInbox(clk),
			timetable.NewLiveScheduler(repo, sched, log),
			netcheck.Static(false),
			clk,
			log,
		),
	}
}

// fire adds a Monday 09:30 slot, moves past it and claims the due alarm like
// the dispatcher.
func (f rearmFixture) fire(t *testing.T) (attendance.Slot, alarm.Alarm) {
	t.Helper()
	ctx := context.Background()
	subj, err := f.svc.CreateSubject(ctx, "Networks")
	require.NoError(t, err)
	slot, err := f.svc.AddSlot(ctx, timetable.NewSlot{SubjectID: subj.ID, Weekday: time.Monday, Hour: 9, Minute: 30})
	require.NoError(t, err)

	f.clock.Add(45 * time.Minute)
	due, err := f.store.PopDue(ctx, f.clock.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	return slot, due[0]
}

func TestJobRearmsLiveSlot(t *testing.T) {
	f := newRearmFixture(timetable.NewMemoryRepository())
	slot, fired := f.fire(t)

	report, err := f.job.Run(context.Background(), fired.Payload)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusSuccess, report.Status)

	pending := f.store.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, alarm.SlotKey(slot.ID), pending[0].Key)
	assert.Equal(t, time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC), pending[0].FireAt)
}

func TestSlotDeletedDuringJobStaysDeleted(t *testing.T) {
	ctx := context.Background()
	f := newRearmFixture(timetable.NewMemoryRepository())
	slot, fired := f.fire(t)

	// The alarm is already claimed, so this cancel finds nothing.
	require.NoError(t, f.svc.DeleteSlot(ctx, slot.ID))

	report, err := f.job.Run(ctx, fired.Payload)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusSuccess, report.Status)
	assert.Empty(t, f.store.Pending())
}

// deleteOnLookup removes the slot right before its n-th lookup.
type deleteOnLookup struct {
	*timetable.MemoryRepository
	lookups int
	n       int
}

func (r *deleteOnLookup) GetSlot(ctx context.Context, id int64) (attendance.Slot, error) {
	r.lookups++
	if r.lookups == r.n {
		_ = r.MemoryRepository.DeleteSlot(ctx, id)
	}
	return r.MemoryRepository.GetSlot(ctx, id)
}

func TestSlotDeletedWhileArmingIsDropped(t *testing.T) {
	repo := &deleteOnLookup{MemoryRepository: timetable.NewMemoryRepository(), n: 2}
	f := newRearmFixture(repo)
	_, fired := f.fire(t)

	_, err := f.job.Run(context.Background(), fired.Payload)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.lookups)
	assert.Empty(t, f.store.Pending())
}

func TestLiveSchedulerPropagatesLookupFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mock.NewMockAlarmScheduler(ctrl)
	live := timetable.NewLiveScheduler(failingRepo{timetable.NewMemoryRepository()}, next, logger.Discard())

	err := live.Register(context.Background(), attendance.Slot{ID: 1, SubjectID: 1, SubjectName: "x", Weekday: time.Monday})
	require.Error(t, err)
	assert.False(t, errs.Is(err, errs.ErrNotFound))
}

type failingRepo struct {
	*timetable.MemoryRepository
}

func (failingRepo) GetSlot(context.Context, int64) (attendance.Slot, error) {
	return attendance.Slot{}, errs.New("db down")
}
