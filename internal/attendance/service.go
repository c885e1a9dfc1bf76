package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hostelhub/internal/directory"
)

// ErrForbidden is returned when the caller lacks the qrscans capability or
// operates outside their own hostel.
var ErrForbidden = errors.New("not authorized to scan")

// Store is the ledger persistence surface; *Repository implements it.
type Store interface {
	EntryFor(ctx context.Context, studentID string, day time.Time) (*Entry, error)
	Insert(ctx context.Context, e Entry) (Entry, error)
	Flip(ctx context.Context, studentID string, day time.Time, markedBy string) (Entry, error)
	ListByStudent(ctx context.Context, studentID string) ([]Entry, error)
	ListByStudentInHostel(ctx context.Context, studentID, hostelID string) ([]Entry, error)
	CountForDay(ctx context.Context, hostelID string, day time.Time) (total, present int, err error)
}

// People resolves tokens and ids to directory records; *directory.Service
// implements it.
type People interface {
	StudentByToken(ctx context.Context, token string) (directory.Student, error)
	StudentByID(ctx context.Context, id string) (directory.Student, error)
	AdminByID(ctx context.Context, id string) (directory.Admin, error)
}

// Cache holds short-lived daily summaries; *store.Redis implements it. A nil
// Cache disables caching.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Service owns the attendance ledger rules: capability-gated access,
// non-mutating lookup, and the atomic create-or-flip toggle.
type Service struct {
	store    Store
	people   People
	cache    Cache
	cacheTTL time.Duration
	now      func() time.Time
}

// NewService creates a service. cache may be nil.
func NewService(store Store, people People, cache Cache, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Service{store: store, people: people, cache: cache, cacheTTL: cacheTTL, now: time.Now}
}

// authorize loads the admin and enforces the qrscans capability.
func (s *Service) authorize(ctx context.Context, adminID string) (directory.Admin, error) {
	admin, err := s.people.AdminByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return directory.Admin{}, ErrForbidden
		}
		return directory.Admin{}, err
	}
	if !admin.HasCapability(directory.CapQRScans) {
		return directory.Admin{}, ErrForbidden
	}
	return admin, nil
}

// ScanResult is what an admin sees after a successful scan: the resolved
// student and their current status for today. AlreadyMarked distinguishes a
// materialized Absent row from the synthesized default.
type ScanResult struct {
	Student       StudentRef `json:"student"`
	Date          time.Time  `json:"date"`
	Status        Status     `json:"status"`
	AlreadyMarked bool       `json:"alreadyMarked"`
}

// StudentRef is the display subset of a student exposed to scan clients.
type StudentRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RollNumber string `json:"rollNumber"`
}

// LookupStatus resolves a QR token and reports the student's status for today
// without mutating the ledger. A day with no entry reads as Absent; the row is
// only materialized by Toggle. Requires the qrscans capability and a student
// in the admin's own hostel.
func (s *Service) LookupStatus(ctx context.Context, qrToken, adminID string) (ScanResult, error) {
	admin, err := s.authorize(ctx, adminID)
	if err != nil {
		return ScanResult{}, err
	}

	student, err := s.people.StudentByToken(ctx, qrToken)
	if err != nil {
		scansTotal.WithLabelValues("not_found").Inc()
		return ScanResult{}, err
	}
	if student.HostelID != admin.HostelID {
		scansTotal.WithLabelValues("forbidden").Inc()
		return ScanResult{}, ErrForbidden
	}

	day := DayOf(s.now())
	entry, err := s.store.EntryFor(ctx, student.ID, day)
	if err != nil {
		return ScanResult{}, err
	}

	res := ScanResult{
		Student: StudentRef{ID: student.ID, Name: student.FullName, RollNumber: student.RollNumber},
		Date:    day,
		Status:  StatusAbsent,
	}
	if entry != nil {
		res.Status = entry.Status
		res.AlreadyMarked = true
	}
	scansTotal.WithLabelValues("ok").Inc()
	return res, nil
}

// ToggleResult reports the outcome of a toggle.
type ToggleResult struct {
	StudentID string    `json:"studentId"`
	HostelID  string    `json:"-"`
	Day       time.Time `json:"-"`
	Status    Status    `json:"status"`
}

// Toggle creates today's entry as Present when none exists, otherwise flips
// Present/Absent, recording the acting admin either way. A lost insert race
// (unique index violation) is retried as refetch-and-flip: concurrent admins
// must never produce two rows for the same student/day.
func (s *Service) Toggle(ctx context.Context, studentID, adminID string) (ToggleResult, error) {
	admin, err := s.authorize(ctx, adminID)
	if err != nil {
		return ToggleResult{}, err
	}

	student, err := s.people.StudentByID(ctx, studentID)
	if err != nil {
		return ToggleResult{}, err
	}
	if student.HostelID != admin.HostelID {
		return ToggleResult{}, ErrForbidden
	}

	day := DayOf(s.now())
	entry, err := s.store.EntryFor(ctx, student.ID, day)
	if err != nil {
		return ToggleResult{}, err
	}

	var final Entry
	if entry == nil {
		final, err = s.store.Insert(ctx, Entry{
			StudentID: student.ID,
			HostelID:  student.HostelID,
			Day:       day,
			Status:    StatusPresent,
			MarkedBy:  admin.ID,
		})
		if errors.Is(err, ErrDuplicateEntry) {
			// Someone else created today's row first; flip it instead.
			final, err = s.store.Flip(ctx, student.ID, day, admin.ID)
		}
	} else {
		final, err = s.store.Flip(ctx, student.ID, day, admin.ID)
	}
	if err != nil {
		return ToggleResult{}, err
	}

	togglesTotal.Inc()
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, summaryKey(student.HostelID, day))
	}
	return ToggleResult{StudentID: student.ID, HostelID: student.HostelID, Day: day, Status: final.Status}, nil
}

// StudentHistory returns a student's entries ascending by day. Days without a
// row are implicitly Absent; calendar views synthesize them.
func (s *Service) StudentHistory(ctx context.Context, studentID string) ([]Entry, error) {
	return s.store.ListByStudent(ctx, studentID)
}

// StudentHistoryForAdmin is the tenant-scoped history used by admin views.
func (s *Service) StudentHistoryForAdmin(ctx context.Context, studentID, hostelID string) ([]Entry, error) {
	return s.store.ListByStudentInHostel(ctx, studentID, hostelID)
}

func summaryKey(hostelID string, day time.Time) string {
	return fmt.Sprintf("summary:%s:%s", hostelID, day.Format("2006-01-02"))
}

// DailySummary counts a hostel's materialized entries for a day, serving from
// the cache when fresh.
func (s *Service) DailySummary(ctx context.Context, hostelID string, day time.Time) (Summary, error) {
	day = DayOf(day)
	key := summaryKey(hostelID, day)

	if s.cache != nil {
		var cached Summary
		if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	total, present, err := s.store.CountForDay(ctx, hostelID, day)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Date: day, TotalMarked: total, Present: present, Absent: total - present}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, sum, s.cacheTTL)
	}
	return sum, nil
}

// TodaySummary is DailySummary for the current day.
func (s *Service) TodaySummary(ctx context.Context, hostelID string) (Summary, error) {
	return s.DailySummary(ctx, hostelID, s.now())
}

// RefreshSummary recomputes and re-caches a hostel/day summary; the worker
// calls this after consuming a toggle audit message.
func (s *Service) RefreshSummary(ctx context.Context, hostelID string, day time.Time) (Summary, error) {
	day = DayOf(day)
	total, present, err := s.store.CountForDay(ctx, hostelID, day)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Date: day, TotalMarked: total, Present: present, Absent: total - present}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, summaryKey(hostelID, day), sum, s.cacheTTL)
	}
	return sum, nil
}
