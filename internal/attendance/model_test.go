package attendance_test

import (
	"encoding/json"
	"testing"
	"time"

	"classattendance/internal/attendance"
	"classattendance/internal/pkg/errs"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSlot() attendance.Slot {
	return attendance.Slot{ID: 11, SubjectID: 4, SubjectName: "Networks", Hour: 14, Minute: 5, Weekday: time.Thursday}
}

func TestSlotPayload_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *attendance.SlotPayload)
		errIs  error
	}{
		{name: "complete payload OK", mutate: func(*attendance.SlotPayload) {}},
		{name: "missing slot id", mutate: func(p *attendance.SlotPayload) { p.SlotID = nil }, errIs: errs.ErrInvalidPayload},
		{name: "missing subject id", mutate: func(p *attendance.SlotPayload) { p.SubjectID = nil }, errIs: errs.ErrInvalidPayload},
		{name: "missing subject name", mutate: func(p *attendance.SlotPayload) { p.SubjectName = nil }, errIs: errs.ErrInvalidPayload},
		{name: "blank subject name", mutate: func(p *attendance.SlotPayload) { blank := "  "; p.SubjectName = &blank }, errIs: errs.ErrInvalidPayload},
		{name: "missing hour", mutate: func(p *attendance.SlotPayload) { p.Hour = nil }, errIs: errs.ErrInvalidPayload},
		{name: "missing minute", mutate: func(p *attendance.SlotPayload) { p.Minute = nil }, errIs: errs.ErrInvalidPayload},
		{name: "missing weekday", mutate: func(p *attendance.SlotPayload) { p.Weekday = nil }, errIs: errs.ErrInvalidPayload},
		{name: "hour 24", mutate: func(p *attendance.SlotPayload) { h := 24; p.Hour = &h }, errIs: errs.ErrInvalidSlot},
		{name: "minute 60", mutate: func(p *attendance.SlotPayload) { m := 60; p.Minute = &m }, errIs: errs.ErrInvalidSlot},
		{name: "weekday 7", mutate: func(p *attendance.SlotPayload) { d := time.Weekday(7); p.Weekday = &d }, errIs: errs.ErrInvalidSlot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validSlot().Payload()
			tt.mutate(&p)

			slot, err := p.Validate()
			if tt.errIs != nil {
				require.Error(t, err)
				assert.True(t, errs.Is(err, tt.errIs), "got %v", err)
				assert.True(t, errs.Is(err, errs.ErrInvalidPayload))
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(validSlot(), slot); diff != "" {
				t.Errorf("slot mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSlotPayload_MissingFieldsFromJSON(t *testing.T) {
	var p attendance.SlotPayload
	require.NoError(t, json.Unmarshal([]byte(`{"slot_id":1,"subject_id":2,"hour":9,"minute":0,"weekday":1}`), &p))

	_, err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subject_name")
}

func TestComposeMessage(t *testing.T) {
	fix := &attendance.PositionFix{Latitude: 12.9715987, Longitude: 77.5945661}
	d := 4.25

	present := attendance.ComposeMessage(attendance.OutcomePresent, fix, &d)
	require.NotNil(t, present)
	assert.Equal(t, "Present\nLatitude = 12.971599\nLongitude = 77.594566\nDistance = 4.250000", *present)

	absent := attendance.ComposeMessage(attendance.OutcomeAbsent, fix, &d)
	require.NotNil(t, absent)
	assert.Equal(t, "Absent\nLatitude = 12.971599\nLongitude = 77.594566\nDistance = 4.250000", *absent)

	assert.Nil(t, attendance.ComposeMessage(attendance.OutcomeUndetermined, fix, &d))
	assert.Nil(t, attendance.ComposeMessage(attendance.OutcomePresent, nil, &d))
	assert.Nil(t, attendance.ComposeMessage(attendance.OutcomePresent, fix, nil))
}

func TestReferencePoint_IsSet(t *testing.T) {
	lat, lon := 1.0, 2.0
	assert.True(t, attendance.ReferencePoint{Latitude: &lat, Longitude: &lon}.IsSet())
	assert.False(t, attendance.ReferencePoint{Latitude: &lat}.IsSet())
	assert.False(t, attendance.ReferencePoint{}.IsSet())
}
