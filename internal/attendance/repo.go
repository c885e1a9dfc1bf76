package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateEntry signals the unique (student_id, day) index rejected an
// insert: another writer materialized today's row first. Callers refetch and
// flip instead of failing.
var ErrDuplicateEntry = errors.New("entry already exists for day")

// Repository persists the attendance ledger in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const entryCols = `id, student_id, hostel_id, day, status, marked_by, created_at, updated_at`

// EntryFor returns the entry for a student on a day, or nil when none exists.
func (r *Repository) EntryFor(ctx context.Context, studentID string, day time.Time) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+entryCols+` FROM attendance_entries
		WHERE student_id = $1 AND day = $2
	`, studentID, day)
	var e Entry
	if err := row.Scan(&e.ID, &e.StudentID, &e.HostelID, &e.Day, &e.Status, &e.MarkedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// Insert writes a new entry. The unique (student_id, day) index is the
// concurrency backstop; a violation comes back as ErrDuplicateEntry.
func (r *Repository) Insert(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_entries (id, student_id, hostel_id, day, status, marked_by)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at
	`, e.ID, e.StudentID, e.HostelID, e.Day, e.Status, e.MarkedBy)
	if err := row.Scan(&e.CreatedAt, &e.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Entry{}, ErrDuplicateEntry
		}
		return Entry{}, err
	}
	return e, nil
}

// Flip atomically inverts the status of an existing entry and records who
// mutated it. The CASE runs inside the UPDATE so concurrent flips serialize on
// the row lock rather than racing a read-modify-write.
func (r *Repository) Flip(ctx context.Context, studentID string, day time.Time, markedBy string) (Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE attendance_entries
		SET status = CASE WHEN status = 'Present' THEN 'Absent' ELSE 'Present' END,
		    marked_by = $3,
		    updated_at = NOW()
		WHERE student_id = $1 AND day = $2
		RETURNING `+entryCols+`
	`, studentID, day, markedBy)
	var e Entry
	if err := row.Scan(&e.ID, &e.StudentID, &e.HostelID, &e.Day, &e.Status, &e.MarkedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, sql.ErrNoRows
		}
		return Entry{}, err
	}
	return e, nil
}

// ListByStudent returns a student's entries ascending by day.
func (r *Repository) ListByStudent(ctx context.Context, studentID string) ([]Entry, error) {
	return r.list(ctx, `
		SELECT `+entryCols+` FROM attendance_entries
		WHERE student_id = $1 ORDER BY day ASC
	`, studentID)
}

// ListByStudentInHostel is the tenant-scoped variant used by admin views.
func (r *Repository) ListByStudentInHostel(ctx context.Context, studentID, hostelID string) ([]Entry, error) {
	return r.list(ctx, `
		SELECT `+entryCols+` FROM attendance_entries
		WHERE student_id = $1 AND hostel_id = $2 ORDER BY day ASC
	`, studentID, hostelID)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.StudentID, &e.HostelID, &e.Day, &e.Status, &e.MarkedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// CountForDay returns marked and present counts for a hostel/day.
func (r *Repository) CountForDay(ctx context.Context, hostelID string, day time.Time) (total, present int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'Present')
		FROM attendance_entries
		WHERE hostel_id = $1 AND day = $2
	`, hostelID, day).Scan(&total, &present)
	return total, present, err
}
