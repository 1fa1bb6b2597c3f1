package domain

import "time"

// Member mirrors the subset of the remote member profile this service
// reads and writes.
type Member struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}

// Membership is a remote membership record; the club only cares whether
// one is active today.
type Membership struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD, empty for open-ended
}

// ActiveOn reports whether the membership covers the given day.
func (m Membership) ActiveOn(now time.Time) bool {
	day := now.Format("2006-01-02")
	if m.StartDate != "" && day < m.StartDate {
		return false
	}
	if m.EndDate != "" && day > m.EndDate {
		return false
	}
	return true
}

// Club, Service and Bay form the remote booking catalog.
type Club struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Service struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ClubID      int64  `json:"club_id"`
	DurationMin int    `json:"duration_min,omitempty"` // 0 when the catalog omits it
}

type Bay struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	ClubID int64  `json:"club_id"`
}

// Door is a controllable entry point on the door-access SaaS.
type Door struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	SiteName string `json:"site_name,omitempty"`
}
