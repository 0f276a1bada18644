// README: Waitlist entries and queue position.
package waitlist

import (
	"time"

	"dropspot/internal/errs"
)

var (
	ErrNotFound      = errs.NotFound("not in waitlist")
	ErrDropNotActive = errs.InvalidState("drop is not active")
	ErrDropExpired   = errs.InvalidState("drop has expired")
)

type Entry struct {
	ID         int64      `json:"id"`
	DropID     int64      `json:"drop_id"`
	UserID     int64      `json:"user_id"`
	IsNotified bool       `json:"is_notified"`
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Position is 1-based; ties on created_at are broken by entry id.
type Position struct {
	DropID   int64 `json:"drop_id"`
	Position int   `json:"position"`
	Total    int   `json:"total"`
}
