package arbiter

import "time"

// Profile captures the subset of arbiter data exposed via the public API
// layer. ActiveCases counts panels the arbiter currently sits on that have
// not reached a terminal status, which drives panel selection at filing.
type Profile struct {
	ID          string
	FullName    string
	Email       string
	ActiveCases int
	CreatedAt   time.Time
}
