package attendance

import (
	"context"
	"sort"
	"sync"

	"classattendance/internal/pkg/errs"
)

// MemoryLedger is an in-process LogStore for the memory backend and tests.
type MemoryLedger struct {
	mu     sync.Mutex
	nextID int64
	rows   []Record
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{nextID: 1}
}

func (m *MemoryLedger) Append(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.InvocationID != "" {
		for _, row := range m.rows {
			if row.InvocationID == rec.InvocationID {
				return row, nil
			}
		}
	}
	rec.ID = m.nextID
	m.nextID++
	m.rows = append(m.rows, rec)
	return rec, nil
}

func (m *MemoryLedger) List(_ context.Context, f LogFilter) ([]Record, error) {
	f = f.normalize()
	m.mu.Lock()
	var res []Record
	for _, row := range m.rows {
		if f.SubjectID != nil && row.SubjectID != *f.SubjectID {
			continue
		}
		res = append(res, row)
	}
	m.mu.Unlock()

	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Timestamp.Equal(res[j].Timestamp) {
			return res[i].ID > res[j].ID
		}
		return res[i].Timestamp.After(res[j].Timestamp)
	})
	if f.Offset >= len(res) {
		return nil, nil
	}
	res = res[f.Offset:]
	if len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

func (m *MemoryLedger) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.rows {
		if row.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return errs.Mark(errs.Newf("attendance log %d", id), errs.ErrNotFound)
}

func (m *MemoryLedger) DeleteBySubject(_ context.Context, subjectID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, row := range m.rows {
		if row.SubjectID != subjectID {
			kept = append(kept, row)
		}
	}
	m.rows = kept
	return nil
}

func (m *MemoryLedger) Tally(_ context.Context, subjectID int64) (Tally, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := Tally{SubjectID: subjectID}
	for _, row := range m.rows {
		if row.SubjectID != subjectID {
			continue
		}
		t.Total++
		if row.WasPresent {
			t.Present++
		}
	}
	t.Percentage = Percentage(t.Present, t.Total)
	return t, nil
}
