package directory

import "time"

// CapQRScans is the capability flag required to scan or toggle attendance.
// Capabilities are coarse per-admin grants, not per-student ACLs.
const CapQRScans = "qrscans"

// Student represents a registered hostel resident. QRToken is issued once at
// registration and never regenerated; it is the sole credential used for
// scan-based lookup, so it is a capability token rather than a display label.
type Student struct {
	ID         string    `json:"id"`
	HostelID   string    `json:"hostel_id"`
	FullName   string    `json:"full_name"`
	RollNumber string    `json:"roll_number"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	QRToken    string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Admin represents a hostel administrator.
type Admin struct {
	ID           string    `json:"id"`
	HostelID     string    `json:"hostel_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Capabilities []string  `json:"capabilities"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasCapability reports whether the admin holds the named capability.
func (a Admin) HasCapability(cap string) bool {
	for _, c := range a.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}
