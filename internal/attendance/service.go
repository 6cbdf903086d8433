package attendance

import (
	"context"
)

// Service exposes the ledger to the HTTP layer.
type Service struct {
	store LogStore
}

// NewService creates a service backed by a log store.
func NewService(store LogStore) *Service {
	return &Service{store: store}
}

// Logs lists records, optionally for one subject.
func (s *Service) Logs(ctx context.Context, f LogFilter) ([]Record, error) {
	return s.store.List(ctx, f)
}

// DeleteLog removes one record.
func (s *Service) DeleteLog(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}

// ForgetSubject drops every record of a subject.
func (s *Service) ForgetSubject(ctx context.Context, subjectID int64) error {
	return s.store.DeleteBySubject(ctx, subjectID)
}

// Tally returns the attendance summary of a subject.
func (s *Service) Tally(ctx context.Context, subjectID int64) (Tally, error) {
	return s.store.Tally(ctx, subjectID)
}
