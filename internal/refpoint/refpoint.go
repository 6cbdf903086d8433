package refpoint

import (
	"context"
	"sync"

	"classattendance/internal/attendance"
	"classattendance/internal/pkg/errs"
)

// Store is the full read/write surface over the stored reference point.
// The resolution job only needs Watch.
type Store interface {
	attendance.ReferencePointStore
	Get(ctx context.Context) (attendance.ReferencePoint, error)
	Set(ctx context.Context, ref attendance.ReferencePoint) error
	Delete(ctx context.Context) error
}

// Validate checks that both coordinates are present and in range.
func Validate(ref attendance.ReferencePoint) error {
	switch {
	case !ref.IsSet():
		return errs.Mark(errs.New("latitude and longitude are both required"), errs.ErrInvalidReference)
	case *ref.Latitude < -90 || *ref.Latitude > 90:
		return errs.Mark(errs.Newf("latitude %f out of range", *ref.Latitude), errs.ErrInvalidReference)
	case *ref.Longitude < -180 || *ref.Longitude > 180:
		return errs.Mark(errs.Newf("longitude %f out of range", *ref.Longitude), errs.ErrInvalidReference)
	}
	return nil
}

// offer replaces whatever is buffered in ch with v so a watcher always sees
// the latest value. ch must have capacity 1 and a single sender.
func offer(ch chan *float64, v *float64) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// MemoryStore keeps the reference point in process.
type MemoryStore struct {
	mu       sync.Mutex
	values   map[string]*float64
	watchers map[string]map[chan *float64]struct{}
}

// NewMemoryStore creates a store with no reference point set.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string]*float64),
		watchers: make(map[string]map[chan *float64]struct{}),
	}
}

// Watch emits the current value of key and then every change until ctx is done.
func (m *MemoryStore) Watch(ctx context.Context, key string) (<-chan *float64, error) {
	ch := make(chan *float64, 1)

	m.mu.Lock()
	if m.watchers[key] == nil {
		m.watchers[key] = make(map[chan *float64]struct{})
	}
	m.watchers[key][ch] = struct{}{}
	ch <- copyFloat(m.values[key])
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers[key], ch)
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}

// Get returns the stored reference point.
func (m *MemoryStore) Get(context.Context) (attendance.ReferencePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return attendance.ReferencePoint{
		Latitude:  copyFloat(m.values[attendance.KeyLatitude]),
		Longitude: copyFloat(m.values[attendance.KeyLongitude]),
	}, nil
}

// Set validates and stores ref, notifying watchers of both keys.
func (m *MemoryStore) Set(_ context.Context, ref attendance.ReferencePoint) error {
	if err := Validate(ref); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(attendance.KeyLatitude, copyFloat(ref.Latitude))
	m.put(attendance.KeyLongitude, copyFloat(ref.Longitude))
	return nil
}

// Delete clears both coordinates.
func (m *MemoryStore) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(attendance.KeyLatitude, nil)
	m.put(attendance.KeyLongitude, nil)
	return nil
}

func (m *MemoryStore) put(key string, v *float64) {
	if v == nil {
		delete(m.values, key)
	} else {
		m.values[key] = v
	}
	for ch := range m.watchers[key] {
		offer(ch, copyFloat(v))
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
