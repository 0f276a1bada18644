// README: Claim engine: eligibility checks, atomic stock-backed creation, verification,
// cancellation and the admin approve/reject primitives.
package claim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"dropspot/internal/clock"
	"dropspot/internal/errs"
	"dropspot/internal/metrics"
	"dropspot/internal/modules/drop"
	"dropspot/internal/modules/geo"
	"dropspot/internal/types"
)

// maxCodeAttempts bounds retries after a verification-code collision.
const maxCodeAttempts = 3

type Repository interface {
	Get(ctx context.Context, id int64) (*Claim, error)
	GetByDropUser(ctx context.Context, dropID, userID int64) (*Claim, error)
	CreateReserved(ctx context.Context, c *Claim) (*Claim, bool, error)
	Verify(ctx context.Context, id int64, code string, now time.Time) (*Claim, bool, error)
	Approve(ctx context.Context, id int64, now time.Time) (*Claim, bool, error)
	CancelAndRelease(ctx context.Context, id, userID int64) (*Claim, bool, error)
	RejectAndRelease(ctx context.Context, id int64, now time.Time) (*Claim, bool, error)
	ListByUser(ctx context.Context, userID int64) ([]Claim, error)
	List(ctx context.Context, f ListFilter, page types.Page) ([]Claim, error)
}

type Drops interface {
	Get(ctx context.Context, id int64) (*drop.Drop, error)
}

type Waitlist interface {
	IsMember(ctx context.Context, dropID, userID int64) (bool, error)
}

type CodeGenerator interface {
	ClaimCode(userID, dropID int64, at time.Time) string
}

type Service struct {
	repo     Repository
	drops    Drops
	waitlist Waitlist
	codes    CodeGenerator
	clock    clock.Clock
	log      *zap.Logger
	metrics  metrics.Recorder
}

func NewService(repo Repository, drops Drops, waitlist Waitlist, codes CodeGenerator, clk clock.Clock, log *zap.Logger, rec metrics.Recorder) *Service {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.Noop()
	}
	return &Service{
		repo:     repo,
		drops:    drops,
		waitlist: waitlist,
		codes:    codes,
		clock:    clk,
		log:      log.Named("claim"),
		metrics:  rec,
	}
}

// Create claims stock from a drop. A user's second attempt returns their first claim.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Claim, error) {
	if cmd.Quantity == 0 {
		cmd.Quantity = 1
	}
	if cmd.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if !cmd.Location.Valid() {
		return nil, ErrInvalidLocation
	}

	d, err := s.drops.Get(ctx, cmd.DropID)
	if err != nil {
		return nil, err
	}
	// Completed (sold out) drops pass this gate; late claimers get
	// InsufficientStock from Reserve, not ErrDropNotActive (DESIGN.md, decision 4).
	if !d.Claimable() {
		return nil, ErrDropNotActive
	}
	now := s.clock.Now()
	if !d.Started(now) {
		return nil, ErrNotStarted
	}
	if d.Expired(now) {
		return nil, ErrExpired
	}

	member, err := s.waitlist.IsMember(ctx, cmd.DropID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotInWaitlist
	}

	existing, err := s.repo.GetByDropUser(ctx, cmd.DropID, cmd.UserID)
	if err == nil {
		s.metrics.ClaimAttempt(metrics.OutcomeExisting)
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if !d.Open() || d.RemainingQuantity < cmd.Quantity {
		s.metrics.ClaimAttempt(metrics.OutcomeSoldOut)
		return nil, ErrInsufficientStock
	}

	dist, inside := geo.Within(d.Location, cmd.Location, d.RadiusMeters)
	if !inside {
		s.metrics.ClaimAttempt(metrics.OutcomeOutsideFence)
		return nil, &errs.GeofenceError{Distance: geo.Round2(dist), Radius: d.RadiusMeters}
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		c := &Claim{
			DropID:           cmd.DropID,
			UserID:           cmd.UserID,
			Quantity:         cmd.Quantity,
			Status:           StatusPending,
			Location:         cmd.Location,
			DistanceFromDrop: geo.Round2(dist),
			VerificationCode: s.codes.ClaimCode(cmd.UserID, cmd.DropID, now.Add(time.Duration(attempt))),
			CreatedAt:        now,
		}
		got, created, err := s.repo.CreateReserved(ctx, c)
		switch {
		case errors.Is(err, ErrCodeCollision):
			s.log.Warn("verification code collision, retrying",
				zap.Int64("drop_id", cmd.DropID), zap.Int("attempt", attempt+1))
			continue
		case errors.Is(err, ErrInsufficientStock):
			s.metrics.ClaimAttempt(metrics.OutcomeSoldOut)
			return nil, err
		case err != nil:
			s.metrics.ClaimAttempt(metrics.OutcomeError)
			return nil, err
		}
		if !created {
			s.metrics.ClaimAttempt(metrics.OutcomeExisting)
			return got, nil
		}
		s.metrics.ClaimAttempt(metrics.OutcomeCreated)
		s.log.Info("claim created",
			zap.Int64("claim_id", got.ID),
			zap.Int64("drop_id", got.DropID),
			zap.Int64("user_id", got.UserID),
			zap.Int("quantity", got.Quantity),
			zap.Float64("distance_m", got.DistanceFromDrop))
		return got, nil
	}
	s.metrics.ClaimAttempt(metrics.OutcomeError)
	return nil, fmt.Errorf("create claim for drop %d: %w", cmd.DropID, ErrCodeCollision)
}

// Verify lets the claimant confirm their claim with its code.
func (s *Service) Verify(ctx context.Context, claimID, userID int64, code string) (*Claim, error) {
	c, err := s.Get(ctx, claimID, userID)
	if err != nil {
		return nil, err
	}
	if c.IsVerified {
		return c, nil
	}
	if c.Status == StatusRejected {
		return nil, ErrClaimRejected
	}
	if strings.ToUpper(strings.TrimSpace(code)) != c.VerificationCode {
		return nil, ErrInvalidCode
	}

	updated, ok, err := s.repo.Verify(ctx, claimID, c.VerificationCode, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.settled(ctx, claimID)
	}
	s.log.Info("claim verified", zap.Int64("claim_id", claimID), zap.Int64("user_id", userID))
	return updated, nil
}

// Cancel deletes an unverified claim and returns its stock to the drop.
func (s *Service) Cancel(ctx context.Context, claimID, userID int64) error {
	c, err := s.Get(ctx, claimID, userID)
	if err != nil {
		return err
	}
	if err := cancellable(c); err != nil {
		return err
	}

	released, ok, err := s.repo.CancelAndRelease(ctx, claimID, userID)
	if err != nil {
		return err
	}
	if !ok {
		// Lost a race with verify, approve or reject.
		cur, err := s.repo.Get(ctx, claimID)
		if err != nil {
			return err
		}
		if err := cancellable(cur); err != nil {
			return err
		}
		return ErrNotFound
	}
	s.metrics.StockReleased("cancel", released.Quantity)
	s.log.Info("claim cancelled",
		zap.Int64("claim_id", claimID),
		zap.Int64("drop_id", released.DropID),
		zap.Int("released", released.Quantity))
	return nil
}

// Approve marks a claim approved and verified. Approving twice is a no-op.
func (s *Service) Approve(ctx context.Context, claimID int64) (*Claim, error) {
	c, err := s.repo.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusApproved {
		return c, nil
	}
	if c.Status == StatusRejected {
		return nil, ErrClaimRejected
	}

	updated, ok, err := s.repo.Approve(ctx, claimID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.settled(ctx, claimID)
	}
	s.log.Info("claim approved", zap.Int64("claim_id", claimID))
	return updated, nil
}

// Reject marks a claim rejected and returns its stock. Rejecting twice is a no-op.
func (s *Service) Reject(ctx context.Context, claimID int64) (*Claim, error) {
	c, err := s.repo.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusRejected {
		return c, nil
	}

	updated, ok, err := s.repo.RejectAndRelease(ctx, claimID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.repo.Get(ctx, claimID)
	}
	s.metrics.ClaimAttempt(metrics.OutcomeRejected)
	s.metrics.StockReleased("reject", updated.Quantity)
	s.log.Info("claim rejected",
		zap.Int64("claim_id", claimID),
		zap.Int64("drop_id", updated.DropID),
		zap.Int("released", updated.Quantity))
	return updated, nil
}

// Get returns the claim if userID owns it.
func (s *Service) Get(ctx context.Context, claimID, userID int64) (*Claim, error) {
	c, err := s.repo.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrNotOwner
	}
	return c, nil
}

func (s *Service) ListMine(ctx context.Context, userID int64) ([]Claim, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) List(ctx context.Context, f ListFilter, page types.Page) ([]Claim, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.List(ctx, f, page.Normalize())
}

func (s *Service) DropStatus(ctx context.Context, dropID, userID int64) (*DropStatus, error) {
	if _, err := s.drops.Get(ctx, dropID); err != nil {
		return nil, err
	}
	member, err := s.waitlist.IsMember(ctx, dropID, userID)
	if err != nil {
		return nil, err
	}
	st := &DropStatus{DropID: dropID, InWaitlist: member}

	c, err := s.repo.GetByDropUser(ctx, dropID, userID)
	if errors.Is(err, ErrNotFound) {
		return st, nil
	}
	if err != nil {
		return nil, err
	}
	st.HasClaimed = true
	st.ClaimID = &c.ID
	st.ClaimStatus = &c.Status
	st.ClaimVerified = c.IsVerified
	return st, nil
}

// settled resolves a conditional update that matched nothing because another writer
// moved the claim first.
func (s *Service) settled(ctx context.Context, claimID int64) (*Claim, error) {
	cur, err := s.repo.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if cur.Status == StatusApproved {
		return cur, nil
	}
	return nil, ErrClaimRejected
}

func cancellable(c *Claim) error {
	if c.IsVerified {
		return ErrVerifiedCannotCancel
	}
	if c.Status == StatusRejected {
		return ErrClaimRejected
	}
	return nil
}
