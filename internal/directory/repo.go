package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors returned by the directory.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Repository persists students and admins in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// uniqueViolation is the Postgres error code for unique-constraint breaches.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// InsertStudent writes a new student row. Duplicate token, email, or roll
// number surfaces as ErrConflict.
func (r *Repository) InsertStudent(ctx context.Context, s Student, passwordHash string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (id, hostel_id, full_name, roll_number, email, phone, qr_token, password_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, s.ID, s.HostelID, s.FullName, s.RollNumber, s.Email, s.Phone, s.QRToken, passwordHash)
	if err := row.Scan(&s.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return Student{}, ErrConflict
		}
		return Student{}, err
	}
	return s, nil
}

const studentCols = `id, hostel_id, full_name, roll_number, email, phone, qr_token, created_at`

func scanStudent(row *sql.Row) (Student, error) {
	var s Student
	err := row.Scan(&s.ID, &s.HostelID, &s.FullName, &s.RollNumber, &s.Email, &s.Phone, &s.QRToken, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, ErrNotFound
	}
	if err != nil {
		return Student{}, err
	}
	return s, nil
}

// StudentByToken resolves a QR token to a student.
func (r *Repository) StudentByToken(ctx context.Context, token string) (Student, error) {
	return scanStudent(r.db.QueryRowContext(ctx,
		`SELECT `+studentCols+` FROM students WHERE qr_token = $1`, token))
}

// StudentByID returns a student by primary key.
func (r *Repository) StudentByID(ctx context.Context, id string) (Student, error) {
	return scanStudent(r.db.QueryRowContext(ctx,
		`SELECT `+studentCols+` FROM students WHERE id = $1`, id))
}

// StudentByEmail returns a student by email, with the password hash attached
// for authentication.
func (r *Repository) StudentByEmail(ctx context.Context, email string) (Student, string, error) {
	var s Student
	var hash string
	err := r.db.QueryRowContext(ctx, `
		SELECT `+studentCols+`, password_hash FROM students WHERE email = $1
	`, email).Scan(&s.ID, &s.HostelID, &s.FullName, &s.RollNumber, &s.Email, &s.Phone, &s.QRToken, &s.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, "", ErrNotFound
	}
	if err != nil {
		return Student{}, "", err
	}
	return s, hash, nil
}

// ListStudents returns all students of a hostel ordered by roll number.
func (r *Repository) ListStudents(ctx context.Context, hostelID string) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+studentCols+` FROM students WHERE hostel_id = $1 ORDER BY roll_number
	`, hostelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.HostelID, &s.FullName, &s.RollNumber, &s.Email, &s.Phone, &s.QRToken, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// HasStudentIn reports whether a student with the given email or roll number
// already exists in the hostel.
func (r *Repository) HasStudentIn(ctx context.Context, hostelID, email, rollNumber string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM students WHERE hostel_id = $1 AND (email = $2 OR roll_number = $3)
		)
	`, hostelID, email, rollNumber).Scan(&exists)
	return exists, err
}

// InsertAdmin writes a new admin row. Capabilities are stored as jsonb.
func (r *Repository) InsertAdmin(ctx context.Context, a Admin) (Admin, error) {
	caps, err := json.Marshal(a.Capabilities)
	if err != nil {
		return Admin{}, err
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO admins (id, hostel_id, email, name, password_hash, capabilities)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, a.ID, a.HostelID, a.Email, a.Name, a.PasswordHash, caps)
	if err := row.Scan(&a.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return Admin{}, ErrConflict
		}
		return Admin{}, err
	}
	return a, nil
}

func scanAdmin(row *sql.Row) (Admin, error) {
	var a Admin
	var caps []byte
	err := row.Scan(&a.ID, &a.HostelID, &a.Email, &a.Name, &a.PasswordHash, &caps, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Admin{}, ErrNotFound
	}
	if err != nil {
		return Admin{}, err
	}
	if len(caps) > 0 {
		if err := json.Unmarshal(caps, &a.Capabilities); err != nil {
			return Admin{}, err
		}
	}
	return a, nil
}

const adminCols = `id, hostel_id, email, name, password_hash, capabilities, created_at`

// AdminByID returns an admin by primary key.
func (r *Repository) AdminByID(ctx context.Context, id string) (Admin, error) {
	return scanAdmin(r.db.QueryRowContext(ctx,
		`SELECT `+adminCols+` FROM admins WHERE id = $1`, id))
}

// AdminByEmail returns an admin by email.
func (r *Repository) AdminByEmail(ctx context.Context, email string) (Admin, error) {
	return scanAdmin(r.db.QueryRowContext(ctx,
		`SELECT `+adminCols+` FROM admins WHERE email = $1`, email))
}
