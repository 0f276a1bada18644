// README: Claim aggregate, its status machine and the errors claim operations return.
package claim

import (
	"errors"
	"time"

	"dropspot/internal/errs"
	"dropspot/internal/types"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

var (
	ErrNotFound             = errs.NotFound("claim not found")
	ErrNotOwner             = errs.Forbidden("not authorized to access this claim")
	ErrDropNotActive        = errs.InvalidState("drop is not active")
	ErrNotStarted           = errs.InvalidState("drop has not started yet")
	ErrExpired              = errs.InvalidState("drop has expired")
	ErrNotInWaitlist        = errs.InvalidState("must join waitlist first")
	ErrInsufficientStock    = errs.InsufficientStock("no remaining quantity available")
	ErrInvalidCode          = errs.Validation("invalid verification code")
	ErrInvalidQuantity      = errs.Validation("quantity must be positive")
	ErrInvalidLocation      = errs.Validation("invalid coordinates")
	ErrInvalidStatus        = errs.Validation("unknown claim status")
	ErrVerifiedCannotCancel = errs.InvalidState("verified claims cannot be cancelled")
	ErrClaimRejected        = errs.InvalidState("claim has been rejected")

	// ErrCodeCollision means the generated verification code is already taken.
	ErrCodeCollision = errors.New("verification code collision")
)

type Claim struct {
	ID               int64       `json:"id"`
	DropID           int64       `json:"drop_id"`
	UserID           int64       `json:"user_id"`
	Quantity         int         `json:"quantity"`
	Status           Status      `json:"status"`
	Location         types.Point `json:"location"`
	DistanceFromDrop float64     `json:"distance_from_drop"`
	VerificationCode string      `json:"verification_code"`
	IsVerified       bool        `json:"is_verified"`
	VerifiedAt       *time.Time  `json:"verified_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        *time.Time  `json:"updated_at,omitempty"`
}

type CreateCommand struct {
	DropID   int64
	UserID   int64
	Quantity int
	Location types.Point
}

type ListFilter struct {
	Status Status
	DropID int64
}

// DropStatus summarises one user's standing on one drop.
type DropStatus struct {
	DropID        int64   `json:"drop_id"`
	InWaitlist    bool    `json:"in_waitlist"`
	HasClaimed    bool    `json:"has_claimed"`
	ClaimID       *int64  `json:"claim_id,omitempty"`
	ClaimStatus   *Status `json:"claim_status,omitempty"`
	ClaimVerified bool    `json:"claim_verified"`
}
