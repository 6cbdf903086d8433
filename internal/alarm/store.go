package alarm

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"classattendance/internal/attendance"
)

// Alarm is one pending fire. Key identifies it in the store; putting an alarm
// with an existing key replaces it.
type Alarm struct {
	Key     string                 `json:"key"`
	FireAt  time.Time              `json:"fire_at"`
	Attempt int                    `json:"attempt"`
	Payload attendance.SlotPayload `json:"payload"`
}

// SlotKey is the key of the weekly alarm of a slot.
func SlotKey(slotID int64) string {
	return "slot:" + strconv.FormatInt(slotID, 10)
}

// RetryKey is the key of a one-shot retry alarm.
func RetryKey(invocationID string) string {
	return "retry:" + invocationID
}

// Store keeps pending alarms ordered by fire time.
type Store interface {
	Put(ctx context.Context, a Alarm) error
	Remove(ctx context.Context, key string) error
	// PopDue removes and returns every alarm due at or before now, oldest
	// first. An alarm is returned to exactly one caller.
	PopDue(ctx context.Context, now time.Time) ([]Alarm, error)
}

// MemoryStore keeps alarms in process. Used by the memory backend and tests.
type MemoryStore struct {
	mu     sync.Mutex
	alarms map[string]Alarm
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{alarms: make(map[string]Alarm)}
}

// Put stores a, replacing any alarm with the same key.
func (m *MemoryStore) Put(_ context.Context, a Alarm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alarms[a.Key] = a
	return nil
}

// Remove drops the alarm stored under key, if any.
func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.alarms, key)
	return nil
}

// PopDue removes and returns the alarms due at or before now.
func (m *MemoryStore) PopDue(_ context.Context, now time.Time) ([]Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []Alarm
	for key, a := range m.alarms {
		if a.FireAt.After(now) {
			continue
		}
		due = append(due, a)
		delete(m.alarms, key)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].FireAt.Before(due[j].FireAt) })
	return due, nil
}

// Pending returns a snapshot of every stored alarm, soonest first.
func (m *MemoryStore) Pending() []Alarm {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Alarm, 0, len(m.alarms))
	for _, a := range m.alarms {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out
}
