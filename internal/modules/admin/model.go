// README: Admin views: platform stats and ranked waitlist rows.
package admin

import "dropspot/internal/modules/waitlist"

// Stats is read in one statement so the counts share a snapshot.
type Stats struct {
	TotalDrops     int `json:"total_drops"`
	ActiveDrops    int `json:"active_drops"`
	TotalClaims    int `json:"total_claims"`
	PendingClaims  int `json:"pending_claims"`
	ApprovedClaims int `json:"approved_claims"`
	TotalWaitlist  int `json:"total_users_on_waitlist"`
}

// WaitlistRow is an entry with its queue position and informational priority score.
type WaitlistRow struct {
	waitlist.Entry
	Position      int     `json:"position"`
	PriorityScore float64 `json:"priority_score"`
}
