// README: Drop aggregate, status values and query inputs.
package drop

import (
	"time"

	"dropspot/internal/errs"
	"dropspot/internal/types"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

const (
	DefaultRadiusMeters = 100
	MaxTitleLength      = 255

	DefaultNearbyRadiusKm = 5.0
	MaxNearbyRadiusKm     = 100.0
)

var (
	ErrNotFound          = errs.NotFound("drop not found")
	ErrShrinkBelowClaims = errs.Validation("total quantity cannot be less than claimed quantity")
	ErrInvalidWindow     = errs.Validation("end time must be after start time")
	ErrInvalidLocation   = errs.Validation("invalid coordinates")
	ErrInvalidQuantity   = errs.Validation("total quantity must be positive")
	ErrInvalidRadius     = errs.Validation("radius must be positive")
	ErrInvalidTitle      = errs.Validation("title must be between 1 and 255 characters")
	ErrInvalidStatus     = errs.Validation("unknown drop status")
	ErrInvalidSearch     = errs.Validation("radius_km must be greater than 0 and at most 100")
)

type Drop struct {
	ID                int64       `json:"id"`
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	ImageURL          string      `json:"image_url"`
	Address           string      `json:"address"`
	TotalQuantity     int         `json:"total_quantity"`
	ClaimedQuantity   int         `json:"claimed_quantity"`
	RemainingQuantity int         `json:"remaining_quantity"`
	Location          types.Point `json:"location"`
	RadiusMeters      int         `json:"radius_meters"`
	StartTime         time.Time   `json:"start_time"`
	EndTime           time.Time   `json:"end_time"`
	Status            Status      `json:"status"`
	IsActive          bool        `json:"is_active"`
	CreatedBy         int64       `json:"created_by"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         *time.Time  `json:"updated_at,omitempty"`
}

// Open reports whether the drop can take new stock reservations.
func (d *Drop) Open() bool {
	return d.IsActive && d.Status == StatusActive
}

// Claimable reports whether the drop still admits waitlist joins and claim attempts.
// A completed drop qualifies; its claims fail on stock instead.
func (d *Drop) Claimable() bool {
	return d.IsActive && d.Status != StatusCancelled
}

func (d *Drop) Started(now time.Time) bool { return !now.Before(d.StartTime) }

func (d *Drop) Expired(now time.Time) bool { return now.After(d.EndTime) }

// Live reports whether the drop is open and inside its claim window.
func (d *Drop) Live(now time.Time) bool {
	return d.Open() && d.Started(now) && !d.Expired(now)
}

type CreateCommand struct {
	Title         string
	Description   string
	ImageURL      string
	Address       string
	TotalQuantity int
	Location      types.Point
	RadiusMeters  int
	StartTime     time.Time
	EndTime       time.Time
	CreatedBy     int64
}

// UpdateCommand is a partial update; nil fields are left unchanged.
type UpdateCommand struct {
	Title         *string
	Description   *string
	ImageURL      *string
	Address       *string
	TotalQuantity *int
	RadiusMeters  *int
	StartTime     *time.Time
	EndTime       *time.Time
	Status        *Status
	IsActive      *bool
}

type Filter struct {
	Status Status
}

type NearbyQuery struct {
	Point    types.Point
	RadiusKm float64
}

type NearbyDrop struct {
	Drop
	DistanceMeters float64 `json:"distance_meters"`
}
