package auth

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"classattendance/internal/pkg/clock"
	"classattendance/internal/pkg/errs"
)

const deviceSchema = `
CREATE TABLE IF NOT EXISTS devices (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS refresh_tokens (
	token      TEXT PRIMARY KEY,
	device_id  TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
	expires_at TIMESTAMPTZ NOT NULL,
	revoked    BOOLEAN NOT NULL DEFAULT FALSE
);
`

// DeviceStore tracks registered devices and their refresh tokens.
type DeviceStore interface {
	UpsertDevice(ctx context.Context, deviceID string) error
	SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error
	// ConsumeRefreshToken revokes token and reports whether it was active.
	ConsumeRefreshToken(ctx context.Context, deviceID, token string) (bool, error)
}

func validDeviceID(deviceID string) error {
	if strings.TrimSpace(deviceID) == "" {
		return errs.New("device id required")
	}
	return nil
}

// PostgresDevices persists devices and refresh tokens.
type PostgresDevices struct {
	db *sql.DB
}

// NewPostgresDevices creates a device store over db.
func NewPostgresDevices(db *sql.DB) *PostgresDevices {
	return &PostgresDevices{db: db}
}

func (r *PostgresDevices) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, deviceSchema)
	return errs.Wrap(err, "migrate devices")
}

// UpsertDevice ensures a device record exists.
func (r *PostgresDevices) UpsertDevice(ctx context.Context, deviceID string) error {
	if err := validDeviceID(deviceID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (id) VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET last_seen = now()
	`, deviceID)
	return errs.Wrap(err, "upsert device")
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *PostgresDevices) SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (device_id, token, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO NOTHING
	`, deviceID, token, expiresAt)
	return errs.Wrap(err, "save refresh token")
}

func (r *PostgresDevices) ConsumeRefreshToken(ctx context.Context, deviceID, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE token = $1 AND device_id = $2 AND NOT revoked AND expires_at > now()
	`, token, deviceID)
	if err != nil {
		return false, errs.Wrap(err, "revoke refresh token")
	}
	n, err := res.RowsAffected()
	return n == 1, errs.Wrap(err, "revoke refresh token")
}

type refreshEntry struct {
	deviceID  string
	expiresAt time.Time
	revoked   bool
}

// MemoryDevices is the in-process DeviceStore.
type MemoryDevices struct {
	mu      sync.Mutex
	clock   clock.Clock
	devices map[string]time.Time
	tokens  map[string]*refreshEntry
}

// NewMemoryDevices creates an in-process device store.
func NewMemoryDevices(clk clock.Clock) *MemoryDevices {
	return &MemoryDevices{clock: clk, devices: make(map[string]time.Time), tokens: make(map[string]*refreshEntry)}
}

func (m *MemoryDevices) UpsertDevice(_ context.Context, deviceID string) error {
	if err := validDeviceID(deviceID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[deviceID] = m.clock.Now()
	return nil
}

func (m *MemoryDevices) SaveRefreshToken(_ context.Context, deviceID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[deviceID]; !ok {
		return errs.Mark(errs.Newf("device %s", deviceID), errs.ErrNotFound)
	}
	if _, ok := m.tokens[token]; !ok {
		m.tokens[token] = &refreshEntry{deviceID: deviceID, expiresAt: expiresAt}
	}
	return nil
}

func (m *MemoryDevices) ConsumeRefreshToken(_ context.Context, deviceID, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tokens[token]
	if !ok || e.revoked || e.deviceID != deviceID || !e.expiresAt.After(m.clock.Now()) {
		return false, nil
	}
	e.revoked = true
	return true, nil
}
