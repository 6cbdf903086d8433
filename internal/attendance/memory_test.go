package attendance_test

import (
	"context"
	"testing"
	"time"

	"classattendance/internal/attendance"
	"classattendance/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger_AppendIsIdempotentPerInvocation(t *testing.T) {
	ctx := context.Background()
	l := attendance.NewMemoryLedger()

	first, err := l.Append(ctx, attendance.Record{InvocationID: "a", SubjectID: 1, SubjectName: "Maths", Timestamp: epoch, WasPresent: true})
	require.NoError(t, err)
	again, err := l.Append(ctx, attendance.Record{InvocationID: "a", SubjectID: 1, SubjectName: "Maths", Timestamp: epoch.Add(time.Minute)})
	require.NoError(t, err)

	assert.Equal(t, first, again)
	rows, err := l.List(ctx, attendance.LogFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMemoryLedger_ListNewestFirstWithFilter(t *testing.T) {
	ctx := context.Background()
	l := attendance.NewMemoryLedger()
	for i := range 4 {
		_, err := l.Append(ctx, attendance.Record{
			SubjectID:  int64(i % 2),
			Timestamp:  epoch.Add(time.Duration(i) * time.Hour),
			WasPresent: i%2 == 0,
		})
		require.NoError(t, err)
	}

	subject := int64(0)
	rows, err := l.List(ctx, attendance.LogFilter{SubjectID: &subject})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Timestamp.After(rows[1].Timestamp))

	page, err := l.List(ctx, attendance.LogFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, epoch.Add(2*time.Hour), page[0].Timestamp)
}

func TestMemoryLedger_TallyAndDelete(t *testing.T) {
	ctx := context.Background()
	l := attendance.NewMemoryLedger()
	svc := attendance.NewService(l)
	for _, present := range []bool{true, true, false} {
		_, err := l.Append(ctx, attendance.Record{SubjectID: 9, Timestamp: epoch, WasPresent: present})
		require.NoError(t, err)
	}

	tally, err := svc.Tally(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, attendance.Tally{SubjectID: 9, Present: 2, Total: 3, Percentage: 66.67}, tally)

	require.NoError(t, svc.DeleteLog(ctx, 1))
	err = svc.DeleteLog(ctx, 1)
	assert.True(t, errs.Is(err, errs.ErrNotFound))

	require.NoError(t, svc.ForgetSubject(ctx, 9))
	tally, err = svc.Tally(ctx, 9)
	require.NoError(t, err)
	assert.Zero(t, tally.Total)
	assert.Zero(t, tally.Percentage)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, attendance.Percentage(0, 0))
	assert.Equal(t, 100.0, attendance.Percentage(4, 4))
	assert.Equal(t, 33.33, attendance.Percentage(1, 3))
}
