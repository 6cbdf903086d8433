package timetable

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"classattendance/internal/attendance"
	"classattendance/internal/pkg/errs"
)

const schema = `
CREATE TABLE IF NOT EXISTS subjects (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS timetable_slots (
	id         BIGSERIAL PRIMARY KEY,
	subject_id BIGINT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
	weekday    SMALLINT NOT NULL CHECK (weekday BETWEEN 0 AND 6),
	hour       SMALLINT NOT NULL CHECK (hour BETWEEN 0 AND 23),
	minute     SMALLINT NOT NULL CHECK (minute BETWEEN 0 AND 59)
);
CREATE INDEX IF NOT EXISTS idx_timetable_slots_subject ON timetable_slots(subject_id);
`

// Repository stores subjects and their weekly slots.
type Repository interface {
	CreateSubject(ctx context.Context, name string) (Subject, error)
	GetSubject(ctx context.Context, id int64) (Subject, error)
	ListSubjects(ctx context.Context) ([]Subject, error)
	DeleteSubject(ctx context.Context, id int64) error

	CreateSlot(ctx context.Context, slot attendance.Slot) (attendance.Slot, error)
	GetSlot(ctx context.Context, id int64) (attendance.Slot, error)
	ListSlots(ctx context.Context, subjectID *int64) ([]attendance.Slot, error)
	DeleteSlot(ctx context.Context, id int64) error
}

// PostgresRepository handles persistence for the timetable.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repository over db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the timetable tables when missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return errs.Wrap(err, "migrate timetable")
}

func (r *PostgresRepository) CreateSubject(ctx context.Context, name string) (Subject, error) {
	s := Subject{Name: name}
	err := r.db.QueryRowContext(ctx, `INSERT INTO subjects (name) VALUES ($1) RETURNING id`, name).Scan(&s.ID)
	if err != nil {
		return Subject{}, errs.Wrap(err, "insert subject")
	}
	return s, nil
}

func (r *PostgresRepository) GetSubject(ctx context.Context, id int64) (Subject, error) {
	var s Subject
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM subjects WHERE id = $1`, id).Scan(&s.ID, &s.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Subject{}, errs.Mark(errs.Newf("subject %d", id), errs.ErrNotFound)
	}
	return s, errs.Wrap(err, "select subject")
}

func (r *PostgresRepository) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM subjects ORDER BY name, id`)
	if err != nil {
		return nil, errs.Wrap(err, "list subjects")
	}
	defer rows.Close()

	var res []Subject
	for rows.Next() {
		var s Subject
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, errs.Wrap(err, "scan subject")
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r *PostgresRepository) DeleteSubject(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, `DELETE FROM subjects WHERE id = $1`, "subject", id)
}

func (r *PostgresRepository) CreateSlot(ctx context.Context, slot attendance.Slot) (attendance.Slot, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO timetable_slots (subject_id, weekday, hour, minute)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, slot.SubjectID, int(slot.Weekday), slot.Hour, slot.Minute).Scan(&slot.ID)
	if err != nil {
		return attendance.Slot{}, errs.Wrap(err, "insert slot")
	}
	return slot, nil
}

const slotColumns = `t.id, t.subject_id, s.name, t.weekday, t.hour, t.minute`

func (r *PostgresRepository) GetSlot(ctx context.Context, id int64) (attendance.Slot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+slotColumns+`
		FROM timetable_slots t JOIN subjects s ON s.id = t.subject_id
		WHERE t.id = $1
	`, id)
	slot, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.Slot{}, errs.Mark(errs.Newf("slot %d", id), errs.ErrNotFound)
	}
	return slot, errs.Wrap(err, "select slot")
}

func (r *PostgresRepository) ListSlots(ctx context.Context, subjectID *int64) ([]attendance.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM timetable_slots t JOIN subjects s ON s.id = t.subject_id`
	var args []any
	if subjectID != nil {
		query += ` WHERE t.subject_id = $1`
		args = append(args, *subjectID)
	}
	query += ` ORDER BY t.weekday, t.hour, t.minute, t.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(err, "list slots")
	}
	defer rows.Close()

	var res []attendance.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, errs.Wrap(err, "scan slot")
		}
		res = append(res, slot)
	}
	return res, rows.Err()
}

func (r *PostgresRepository) DeleteSlot(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, `DELETE FROM timetable_slots WHERE id = $1`, "slot", id)
}

func (r *PostgresRepository) deleteByID(ctx context.Context, query, what string, id int64) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return errs.Wrapf(err, "delete %s", what)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.Mark(errs.Newf("%s %d", what, id), errs.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSlot(row scanner) (attendance.Slot, error) {
	var (
		slot    attendance.Slot
		weekday int
	)
	if err := row.Scan(&slot.ID, &slot.SubjectID, &slot.SubjectName, &weekday, &slot.Hour, &slot.Minute); err != nil {
		return attendance.Slot{}, err
	}
	slot.Weekday = time.Weekday(weekday)
	return slot, nil
}
