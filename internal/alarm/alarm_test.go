package alarm_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"classattendance/internal/alarm"
	"classattendance/internal/attendance"
	"classattendance/internal/logger"
	"classattendance/internal/metrics"
	"classattendance/internal/pkg/clock"
	"classattendance/internal/queue"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday 2024-03-04 09:30 UTC.
var monday = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		weekday time.Weekday
		hour    int
		minute  int
		want    time.Time
	}{
		{name: "later today", now: monday, weekday: time.Monday, hour: 10, minute: 0, want: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)},
		{name: "exactly now rolls a week", now: monday, weekday: time.Monday, hour: 9, minute: 30, want: time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)},
		{name: "earlier today rolls a week", now: monday, weekday: time.Monday, hour: 8, minute: 0, want: time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC)},
		{name: "later this week", now: monday, weekday: time.Thursday, hour: 14, minute: 5, want: time.Date(2024, 3, 7, 14, 5, 0, 0, time.UTC)},
		{name: "sunday wraps", now: monday, weekday: time.Sunday, hour: 0, minute: 0, want: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
		{name: "crosses month", now: time.Date(2024, 3, 30, 12, 0, 0, 0, time.UTC), weekday: time.Tuesday, hour: 7, minute: 45, want: time.Date(2024, 4, 2, 7, 45, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := alarm.NextOccurrence(tt.now, tt.weekday, tt.hour, tt.minute)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
			assert.True(t, got.After(tt.now))
		})
	}
}

func TestNextOccurrence_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2024, 3, 4, 23, 0, 0, 0, loc)
	got := alarm.NextOccurrence(now, time.Tuesday, 8, 0)
	assert.Equal(t, loc, got.Location())
	assert.Equal(t, time.Date(2024, 3, 5, 8, 0, 0, 0, loc), got)
}

func slot(id int64) attendance.Slot {
	return attendance.Slot{ID: id, SubjectID: 3, SubjectName: "Databases", Hour: 10, Minute: 0, Weekday: time.Monday}
}

func TestMemoryStore_PopDueOrdersAndClaims(t *testing.T) {
	ctx := context.Background()
	s := alarm.NewMemoryStore()
	require.NoError(t, s.Put(ctx, alarm.Alarm{Key: "b", FireAt: monday.Add(2 * time.Minute)}))
	require.NoError(t, s.Put(ctx, alarm.Alarm{Key: "a", FireAt: monday.Add(time.Minute)}))
	require.NoError(t, s.Put(ctx, alarm.Alarm{Key: "c", FireAt: monday.Add(time.Hour)}))

	due, err := s.PopDue(ctx, monday.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "a", due[0].Key)
	assert.Equal(t, "b", due[1].Key)

	again, err := s.PopDue(ctx, monday.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Len(t, s.Pending(), 1)
}

func TestScheduler_RegisterReplacesAndCancel(t *testing.T) {
	ctx := context.Background()
	store := alarm.NewMemoryStore()
	sched := alarm.NewScheduler(store, clock.NewMockClock(monday), logger.Discard())

	require.NoError(t, sched.Register(ctx, slot(1)))
	moved := slot(1)
	moved.Hour = 11
	require.NoError(t, sched.Register(ctx, moved))

	pending := store.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, alarm.SlotKey(1), pending[0].Key)
	assert.Equal(t, time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC), pending[0].FireAt)

	got, err := pending[0].Payload.Validate()
	require.NoError(t, err)
	assert.Equal(t, moved, got)

	require.NoError(t, sched.Cancel(ctx, 1))
	require.NoError(t, sched.Cancel(ctx, 42))
	assert.Empty(t, store.Pending())
}

func TestScheduler_RegisterRejectsInvalidSlot(t *testing.T) {
	sched := alarm.NewScheduler(alarm.NewMemoryStore(), clock.NewMockClock(monday), logger.Discard())
	bad := slot(1)
	bad.Minute = 75
	assert.Error(t, sched.Register(context.Background(), bad))
}

func TestScheduler_RegisterRetry(t *testing.T) {
	store := alarm.NewMemoryStore()
	sched := alarm.NewScheduler(store, clock.NewMockClock(monday), logger.Discard())

	p := slot(5).Payload()
	p.InvocationID = "inv-1"
	require.NoError(t, sched.RegisterRetry(context.Background(), p, 2, 30*time.Second))

	pending := store.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, alarm.RetryKey("inv-1"), pending[0].Key)
	assert.Equal(t, 2, pending[0].Attempt)
	assert.Equal(t, monday.Add(30*time.Second), pending[0].FireAt)
}

type failingQueue struct{ err error }

func (q failingQueue) Publish(context.Context, queue.Message) error { return q.err }
func (q failingQueue) Consume(context.Context) (<-chan queue.Message, error) {
	return nil, q.err
}

func TestDispatcher_TickPublishesDueAlarms(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMockClock(monday)
	store := alarm.NewMemoryStore()
	q := queue.NewInMemory(8)
	m := metrics.New(prometheus.NewRegistry())
	sched := alarm.NewScheduler(store, clk, logger.Discard())
	d := alarm.NewDispatcher(store, q, clk, time.Second, m, logger.Discard())

	require.NoError(t, sched.Register(ctx, slot(7)))

	n, err := d.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clk.Add(31 * time.Minute)
	n, err = d.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatched))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	msg := <-msgs
	assert.Equal(t, queue.TypeSlotFired, msg.Type)
	assert.NotEmpty(t, msg.ID)

	var p attendance.SlotPayload
	require.NoError(t, json.Unmarshal(msg.Body, &p))
	assert.Equal(t, msg.ID, p.InvocationID)
	got, err := p.Validate()
	require.NoError(t, err)
	assert.Equal(t, slot(7), got)
}

func TestDispatcher_PutsBackOnPublishFailure(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMockClock(monday)
	store := alarm.NewMemoryStore()
	require.NoError(t, store.Put(ctx, alarm.Alarm{Key: "k", FireAt: monday, Payload: slot(1).Payload()}))

	d := alarm.NewDispatcher(store, failingQueue{err: assert.AnError}, clk, time.Second, nil, logger.Discard())
	n, err := d.Tick(ctx)
	require.Error(t, err)
	assert.Zero(t, n)
	require.Len(t, store.Pending(), 1)
	assert.Equal(t, "k", store.Pending()[0].Key)
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clk := clock.NewMockClock(monday)
	store := alarm.NewMemoryStore()
	q := queue.NewInMemory(8)
	require.NoError(t, store.Put(ctx, alarm.Alarm{Key: "k", FireAt: monday.Add(time.Second), Payload: slot(1).Payload()}))

	d := alarm.NewDispatcher(store, q, clk, time.Second, nil, logger.Discard())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	clk.BlockUntil(1)
	clk.Add(time.Second)

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	select {
	case msg := <-msgs:
		assert.Equal(t, queue.TypeSlotFired, msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("alarm not dispatched")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
