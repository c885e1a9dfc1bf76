package attendance

import "time"

// AuditMessageType tags toggle audit messages on the queue.
const AuditMessageType = "attendance.toggle"

// ToggleAudit is the queue payload emitted after a successful toggle. The
// worker uses it to refresh the summary cache and keep an audit trail.
type ToggleAudit struct {
	StudentID string    `json:"student_id"`
	HostelID  string    `json:"hostel_id"`
	Day       time.Time `json:"day"`
	Status    Status    `json:"status"`
	MarkedBy  string    `json:"marked_by"`
}
