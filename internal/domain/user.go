package domain

import "time"

// RoleAdmin is the role allowed to remove other users' posts.
const RoleAdmin = "admin"

// Ledger reasons written by the services.
const (
	ReasonPostCreated = "video posted"
	ReasonPostRemoved = "post removed"
)

// ScoreLedgerEntry is an append-only record of a score change.
type ScoreLedgerEntry struct {
	Timestamp time.Time
	Delta     int
	Reason    string
}

// UserRecord is the per-user document holding role, counters and ledger.
type UserRecord struct {
	ID          string
	Role        string
	VideosCount int
	LostVideos  int
	Ledger      []ScoreLedgerEntry
}

// IsAdmin reports whether the user may moderate posts.
func (u *UserRecord) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Score sums the ledger.
func (u *UserRecord) Score() int {
	total := 0
	for _, e := range u.Ledger {
		total += e.Delta
	}
	return total
}
