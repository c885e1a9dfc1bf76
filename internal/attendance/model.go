package attendance

import "time"

// Status is the per-day attendance state. The ledger is sparse: a day with no
// entry is implicitly Absent, and only a toggle materializes a row.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// Flipped returns the opposite status.
func (s Status) Flipped() Status {
	if s == StatusPresent {
		return StatusAbsent
	}
	return StatusPresent
}

// Entry is one ledger row: the attendance of one student on one calendar day.
// At most one entry exists per (StudentID, Day); entries are never deleted.
type Entry struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	HostelID  string    `json:"hostel_id"`
	Day       time.Time `json:"date"`
	Status    Status    `json:"status"`
	MarkedBy  string    `json:"marked_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DayOf normalizes a timestamp to its calendar day at UTC midnight. All ledger
// reads and writes go through this so midnight-boundary scans land on one
// consistent day regardless of server locale.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Summary aggregates one hostel's materialized entries for one day. Students
// never scanned that day are implicitly absent and outside TotalMarked.
type Summary struct {
	Date        time.Time `json:"date"`
	TotalMarked int       `json:"totalMarked"`
	Present     int       `json:"present"`
	Absent      int       `json:"absent"`
}
