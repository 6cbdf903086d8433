package timetable

import (
	"context"
	"sort"
	"sync"

	"classattendance/internal/attendance"
	"classattendance/internal/pkg/errs"
)

// MemoryRepository is the in-process Repository. Deleting a subject removes
// its slots, matching the cascade in Postgres.
type MemoryRepository struct {
	mu          sync.Mutex
	nextSubject int64
	nextSlot    int64
	subjects    map[int64]Subject
	slots       map[int64]attendance.Slot
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextSubject: 1,
		nextSlot:    1,
		subjects:    make(map[int64]Subject),
		slots:       make(map[int64]attendance.Slot),
	}
}

func (m *MemoryRepository) CreateSubject(_ context.Context, name string) (Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Subject{ID: m.nextSubject, Name: name}
	m.nextSubject++
	m.subjects[s.ID] = s
	return s, nil
}

func (m *MemoryRepository) GetSubject(_ context.Context, id int64) (Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subjects[id]
	if !ok {
		return Subject{}, errs.Mark(errs.Newf("subject %d", id), errs.ErrNotFound)
	}
	return s, nil
}

func (m *MemoryRepository) ListSubjects(context.Context) ([]Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]Subject, 0, len(m.subjects))
	for _, s := range m.subjects {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Name != res[j].Name {
			return res[i].Name < res[j].Name
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (m *MemoryRepository) DeleteSubject(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subjects[id]; !ok {
		return errs.Mark(errs.Newf("subject %d", id), errs.ErrNotFound)
	}
	delete(m.subjects, id)
	for slotID, slot := range m.slots {
		if slot.SubjectID == id {
			delete(m.slots, slotID)
		}
	}
	return nil
}

func (m *MemoryRepository) CreateSlot(_ context.Context, slot attendance.Slot) (attendance.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subjects[slot.SubjectID]; !ok {
		return attendance.Slot{}, errs.Mark(errs.Newf("subject %d", slot.SubjectID), errs.ErrNotFound)
	}
	slot.ID = m.nextSlot
	m.nextSlot++
	m.slots[slot.ID] = slot
	return slot, nil
}

func (m *MemoryRepository) GetSlot(_ context.Context, id int64) (attendance.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[id]
	if !ok {
		return attendance.Slot{}, errs.Mark(errs.Newf("slot %d", id), errs.ErrNotFound)
	}
	slot.SubjectName = m.subjects[slot.SubjectID].Name
	return slot, nil
}

func (m *MemoryRepository) ListSlots(_ context.Context, subjectID *int64) ([]attendance.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []attendance.Slot
	for _, slot := range m.slots {
		if subjectID != nil && slot.SubjectID != *subjectID {
			continue
		}
		slot.SubjectName = m.subjects[slot.SubjectID].Name
		res = append(res, slot)
	}
	sortSlots(res)
	return res, nil
}

func (m *MemoryRepository) DeleteSlot(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return errs.Mark(errs.Newf("slot %d", id), errs.ErrNotFound)
	}
	delete(m.slots, id)
	return nil
}

func sortSlots(slots []attendance.Slot) {
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		if a.Minute != b.Minute {
			return a.Minute < b.Minute
		}
		return a.ID < b.ID
	})
}
