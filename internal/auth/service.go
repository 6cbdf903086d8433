package auth

import (
	"context"

	"classattendance/internal/pkg/errs"
)

// Service registers devices and rotates their tokens.
type Service struct {
	issuer  *Issuer
	devices DeviceStore
}

func NewService(issuer *Issuer, devices DeviceStore) *Service {
	return &Service{issuer: issuer, devices: devices}
}

// Register records deviceID and issues a fresh token pair.
func (s *Service) Register(ctx context.Context, deviceID string) (TokenPair, error) {
	if err := s.devices.UpsertDevice(ctx, deviceID); err != nil {
		return TokenPair{}, err
	}
	return s.issue(ctx, deviceID)
}

// Refresh exchanges a refresh token for a new pair. Each refresh token is
// accepted once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.issuer.Parse(refreshToken, KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	ok, err := s.devices.ConsumeRefreshToken(ctx, claims.Subject, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if !ok {
		return TokenPair{}, errs.Mark(errs.New("refresh token revoked or unknown"), ErrInvalidToken)
	}
	return s.issue(ctx, claims.Subject)
}

func (s *Service) issue(ctx context.Context, deviceID string) (TokenPair, error) {
	tokens, err := s.issuer.Issue(deviceID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.devices.SaveRefreshToken(ctx, deviceID, tokens.RefreshToken, tokens.RefreshExp); err != nil {
		return TokenPair{}, err
	}
	return tokens, nil
}
