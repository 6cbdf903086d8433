package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"classattendance/internal/pkg/errs"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS attendance_logs (
	id            BIGSERIAL PRIMARY KEY,
	invocation_id TEXT UNIQUE,
	subject_id    BIGINT NOT NULL,
	subject_name  TEXT NOT NULL,
	logged_at     TIMESTAMPTZ NOT NULL,
	was_present   BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attendance_logs_subject ON attendance_logs(subject_id);
CREATE INDEX IF NOT EXISTS idx_attendance_logs_time ON attendance_logs(logged_at);
`

// LogFilter narrows ledger listings.
type LogFilter struct {
	SubjectID *int64
	Limit     int
	Offset    int
}

// LogStore is the read/delete side of the ledger used by Service.
type LogStore interface {
	Ledger
	List(ctx context.Context, f LogFilter) ([]Record, error)
	Delete(ctx context.Context, id int64) error
	DeleteBySubject(ctx context.Context, subjectID int64) error
	Tally(ctx context.Context, subjectID int64) (Tally, error)
}

// PostgresLedger persists attendance records in Postgres.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger creates a ledger over an open pool.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Migrate creates the ledger table when missing.
func (r *PostgresLedger) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, ledgerSchema)
	return errs.Wrap(err, "migrate attendance_logs")
}

// Append writes a record. A second append with the same invocation id
// returns the row written by the first one.
func (r *PostgresLedger) Append(ctx context.Context, rec Record) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_logs (invocation_id, subject_id, subject_name, logged_at, was_present)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5)
		ON CONFLICT (invocation_id) DO NOTHING
		RETURNING id
	`, rec.InvocationID, rec.SubjectID, rec.SubjectName, rec.Timestamp.UTC(), rec.WasPresent)
	err := row.Scan(&rec.ID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Record{}, errs.Wrap(err, "insert attendance log")
	}

	existing, err := r.byInvocation(ctx, rec.InvocationID)
	if err != nil {
		return Record{}, err
	}
	return existing, nil
}

func (r *PostgresLedger) byInvocation(ctx context.Context, invocationID string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(invocation_id, ''), subject_id, subject_name, logged_at, was_present
		FROM attendance_logs WHERE invocation_id = $1
	`, invocationID)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.InvocationID, &rec.SubjectID, &rec.SubjectName, &rec.Timestamp, &rec.WasPresent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, errs.Mark(errs.Newf("attendance log for invocation %s", invocationID), errs.ErrNotFound)
		}
		return Record{}, errs.Wrap(err, "select attendance log")
	}
	return rec, nil
}

// List returns records newest first.
func (r *PostgresLedger) List(ctx context.Context, f LogFilter) ([]Record, error) {
	f = f.normalize()
	query := `SELECT id, COALESCE(invocation_id, ''), subject_id, subject_name, logged_at, was_present FROM attendance_logs`
	args := []any{}
	clauses := []string{}
	if f.SubjectID != nil {
		clauses = append(clauses, "subject_id = $"+itoa(len(args)+1))
		args = append(args, *f.SubjectID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY logged_at DESC, id DESC LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(err, "list attendance logs")
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.InvocationID, &rec.SubjectID, &rec.SubjectName, &rec.Timestamp, &rec.WasPresent); err != nil {
			return nil, errs.Wrap(err, "scan attendance log")
		}
		res = append(res, rec)
	}
	return res, errs.Wrap(rows.Err(), "iterate attendance logs")
}

// Delete removes a single record.
func (r *PostgresLedger) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_logs WHERE id = $1`, id)
	if err != nil {
		return errs.Wrap(err, "delete attendance log")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.Mark(errs.Newf("attendance log %d", id), errs.ErrNotFound)
	}
	return nil
}

// DeleteBySubject removes every record of a subject.
func (r *PostgresLedger) DeleteBySubject(ctx context.Context, subjectID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM attendance_logs WHERE subject_id = $1`, subjectID)
	return errs.Wrap(err, "delete attendance logs of subject")
}

// Tally counts present and total records of a subject.
func (r *PostgresLedger) Tally(ctx context.Context, subjectID int64) (Tally, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE was_present), COUNT(*)
		FROM attendance_logs WHERE subject_id = $1
	`, subjectID)
	t := Tally{SubjectID: subjectID}
	if err := row.Scan(&t.Present, &t.Total); err != nil {
		return Tally{}, errs.Wrap(err, "tally attendance logs")
	}
	t.Percentage = Percentage(t.Present, t.Total)
	return t, nil
}

// Percentage is present/total*100 rounded to two decimals, 0 when total is 0.
func Percentage(present, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(present)/float64(total)*100*100) / 100
}

func (f LogFilter) normalize() LogFilter {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }
