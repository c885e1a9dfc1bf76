package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned when login email/password do not match.
var ErrBadCredentials = errors.New("invalid credentials")

// Service coordinates student registration and admin management.
type Service struct {
	repo *Repository
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// RegisterInput carries the fields required to register a student.
type RegisterInput struct {
	HostelID   string
	FullName   string
	RollNumber string
	Email      string
	Phone      string
}

// RegisterStudent creates a student and issues their QR token. The token is
// generated exactly once here; there is no rotation path. A collision with an
// existing token fails the registration with ErrConflict rather than
// overwriting the older student's credential.
func (s *Service) RegisterStudent(ctx context.Context, in RegisterInput) (Student, error) {
	if in.HostelID == "" || in.FullName == "" || in.RollNumber == "" || in.Email == "" {
		return Student{}, errors.New("hostel, name, roll number and email are required")
	}

	exists, err := s.repo.HasStudentIn(ctx, in.HostelID, in.Email, in.RollNumber)
	if err != nil {
		return Student{}, err
	}
	if exists {
		return Student{}, ErrConflict
	}

	// Initial password is the phone number; forced-change happens elsewhere.
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Phone), bcrypt.DefaultCost)
	if err != nil {
		return Student{}, err
	}

	st := Student{
		ID:         uuid.NewString(),
		HostelID:   in.HostelID,
		FullName:   strings.TrimSpace(in.FullName),
		RollNumber: strings.TrimSpace(in.RollNumber),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:      in.Phone,
		QRToken:    uuid.NewString(),
	}
	return s.repo.InsertStudent(ctx, st, string(hash))
}

// StudentByToken resolves a scanned QR token to its student.
func (s *Service) StudentByToken(ctx context.Context, token string) (Student, error) {
	if token == "" {
		return Student{}, ErrNotFound
	}
	return s.repo.StudentByToken(ctx, token)
}

// StudentByID returns a student by id.
func (s *Service) StudentByID(ctx context.Context, id string) (Student, error) {
	return s.repo.StudentByID(ctx, id)
}

// ListStudents returns all students of a hostel.
func (s *Service) ListStudents(ctx context.Context, hostelID string) ([]Student, error) {
	return s.repo.ListStudents(ctx, hostelID)
}

// AdminByID returns an admin record.
func (s *Service) AdminByID(ctx context.Context, id string) (Admin, error) {
	return s.repo.AdminByID(ctx, id)
}

// CreateAdminInput carries the fields required to create an admin.
type CreateAdminInput struct {
	HostelID     string
	Email        string
	Name         string
	Password     string
	Capabilities []string
}

// CreateAdmin creates an admin with an explicit capability list.
func (s *Service) CreateAdmin(ctx context.Context, in CreateAdminInput) (Admin, error) {
	if in.HostelID == "" || in.Email == "" || in.Password == "" {
		return Admin{}, errors.New("hostel, email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Admin{}, err
	}
	return s.repo.InsertAdmin(ctx, Admin{
		ID:           uuid.NewString(),
		HostelID:     in.HostelID,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Name:         in.Name,
		PasswordHash: string(hash),
		Capabilities: in.Capabilities,
	})
}

// Identity is the outcome of a successful login.
type Identity struct {
	ID       string
	Role     string
	HostelID string
}

// Authenticate checks email/password against admins first, then students.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if a, err := s.repo.AdminByEmail(ctx, email); err == nil {
		if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil {
			return Identity{ID: a.ID, Role: "admin", HostelID: a.HostelID}, nil
		}
		return Identity{}, ErrBadCredentials
	} else if !errors.Is(err, ErrNotFound) {
		return Identity{}, err
	}

	st, hash, err := s.repo.StudentByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrBadCredentials
		}
		return Identity{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Identity{}, ErrBadCredentials
	}
	return Identity{ID: st.ID, Role: "student", HostelID: st.HostelID}, nil
}
