// README: Admin override: permission-gated drop edits, claim review, listings and stats.
package admin

import (
	"context"

	"go.uber.org/zap"

	"dropspot/internal/auth"
	"dropspot/internal/modules/claim"
	"dropspot/internal/modules/drop"
	"dropspot/internal/modules/waitlist"
	"dropspot/internal/types"
)

type DropManager interface {
	Create(ctx context.Context, cmd drop.CreateCommand) (*drop.Drop, error)
	Update(ctx context.Context, id int64, cmd drop.UpdateCommand) (*drop.Drop, error)
	SoftDelete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*drop.Drop, error)
}

type ClaimReviewer interface {
	Approve(ctx context.Context, claimID int64) (*claim.Claim, error)
	Reject(ctx context.Context, claimID int64) (*claim.Claim, error)
	List(ctx context.Context, f claim.ListFilter, page types.Page) ([]claim.Claim, error)
}

type WaitlistReader interface {
	ListByDrop(ctx context.Context, dropID int64, page types.Page) ([]waitlist.Entry, error)
}

type StatsReader interface {
	Stats(ctx context.Context) (*Stats, error)
}

type PriorityScorer interface {
	PriorityScore(userID, dropID int64, position int) float64
}

type Deps struct {
	Drops    DropManager
	Claims   ClaimReviewer
	Waitlist WaitlistReader
	Stats    StatsReader
	Scorer   PriorityScorer
	Authz    *auth.Authorizer
	Log      *zap.Logger
}

type Service struct {
	drops    DropManager
	claims   ClaimReviewer
	waitlist WaitlistReader
	stats    StatsReader
	scorer   PriorityScorer
	authz    *auth.Authorizer
	log      *zap.Logger
}

func NewService(deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		drops:    deps.Drops,
		claims:   deps.Claims,
		waitlist: deps.Waitlist,
		stats:    deps.Stats,
		scorer:   deps.Scorer,
		authz:    deps.Authz,
		log:      log.Named("admin"),
	}
}

// CreateDrop records the caller as the drop's creator.
func (s *Service) CreateDrop(ctx context.Context, p *auth.Principal, cmd drop.CreateCommand) (*drop.Drop, error) {
	if err := s.authz.Require(ctx, p, auth.PermManageDrops); err != nil {
		return nil, err
	}
	cmd.CreatedBy = p.UserID
	d, err := s.drops.Create(ctx, cmd)
	if err != nil {
		return nil, err
	}
	s.log.Info("drop created", zap.Int64("drop_id", d.ID), zap.Int64("admin_id", p.UserID))
	return d, nil
}

func (s *Service) UpdateDrop(ctx context.Context, p *auth.Principal, id int64, cmd drop.UpdateCommand) (*drop.Drop, error) {
	if err := s.authz.Require(ctx, p, auth.PermManageDrops); err != nil {
		return nil, err
	}
	d, err := s.drops.Update(ctx, id, cmd)
	if err != nil {
		return nil, err
	}
	s.log.Info("drop updated", zap.Int64("drop_id", id), zap.Int64("admin_id", p.UserID))
	return d, nil
}

func (s *Service) SoftDeleteDrop(ctx context.Context, p *auth.Principal, id int64) error {
	if err := s.authz.Require(ctx, p, auth.PermManageDrops); err != nil {
		return err
	}
	if err := s.drops.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.log.Info("drop deactivated", zap.Int64("drop_id", id), zap.Int64("admin_id", p.UserID))
	return nil
}

func (s *Service) ApproveClaim(ctx context.Context, p *auth.Principal, claimID int64) (*claim.Claim, error) {
	if err := s.authz.Require(ctx, p, auth.PermReviewClaims); err != nil {
		return nil, err
	}
	return s.claims.Approve(ctx, claimID)
}

func (s *Service) RejectClaim(ctx context.Context, p *auth.Principal, claimID int64) (*claim.Claim, error) {
	if err := s.authz.Require(ctx, p, auth.PermReviewClaims); err != nil {
		return nil, err
	}
	return s.claims.Reject(ctx, claimID)
}

func (s *Service) ListClaims(ctx context.Context, p *auth.Principal, f claim.ListFilter, page types.Page) ([]claim.Claim, error) {
	if err := s.authz.Require(ctx, p, auth.PermReviewClaims); err != nil {
		return nil, err
	}
	return s.claims.List(ctx, f, page)
}

func (s *Service) DropClaims(ctx context.Context, p *auth.Principal, dropID int64, page types.Page) ([]claim.Claim, error) {
	if err := s.authz.Require(ctx, p, auth.PermReviewClaims); err != nil {
		return nil, err
	}
	if _, err := s.drops.Get(ctx, dropID); err != nil {
		return nil, err
	}
	return s.claims.List(ctx, claim.ListFilter{DropID: dropID}, page)
}

// DropWaitlist lists entries oldest first with their 1-based position.
func (s *Service) DropWaitlist(ctx context.Context, p *auth.Principal, dropID int64, page types.Page) ([]WaitlistRow, error) {
	if err := s.authz.Require(ctx, p, auth.PermReviewClaims); err != nil {
		return nil, err
	}
	if _, err := s.drops.Get(ctx, dropID); err != nil {
		return nil, err
	}
	page = page.Normalize()
	entries, err := s.waitlist.ListByDrop(ctx, dropID, page)
	if err != nil {
		return nil, err
	}
	rows := make([]WaitlistRow, 0, len(entries))
	for i, e := range entries {
		row := WaitlistRow{Entry: e, Position: page.Skip + i + 1}
		if s.scorer != nil {
			row.PriorityScore = s.scorer.PriorityScore(e.UserID, dropID, row.Position)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Service) Stats(ctx context.Context, p *auth.Principal) (*Stats, error) {
	if err := s.authz.Require(ctx, p, auth.PermViewStats); err != nil {
		return nil, err
	}
	return s.stats.Stats(ctx)
}
