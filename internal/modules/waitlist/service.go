// README: Waitlist ledger: idempotent join, leave and queue queries.
package waitlist

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"dropspot/internal/clock"
	"dropspot/internal/metrics"
	"dropspot/internal/modules/drop"
	"dropspot/internal/types"
)

type Repository interface {
	Insert(ctx context.Context, dropID, userID int64, now time.Time) (*Entry, bool, error)
	Get(ctx context.Context, dropID, userID int64) (*Entry, error)
	Delete(ctx context.Context, dropID, userID int64) (bool, error)
	Position(ctx context.Context, dropID, userID int64) (*Position, error)
	Count(ctx context.Context, dropID int64) (int, error)
	ListByUser(ctx context.Context, userID int64) ([]Entry, error)
	ListByDrop(ctx context.Context, dropID int64, page types.Page) ([]Entry, error)
}

type Drops interface {
	Get(ctx context.Context, id int64) (*drop.Drop, error)
}

type Service struct {
	repo    Repository
	drops   Drops
	clock   clock.Clock
	log     *zap.Logger
	metrics metrics.Recorder
}

func NewService(repo Repository, drops Drops, clk clock.Clock, log *zap.Logger, rec metrics.Recorder) *Service {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.Noop()
	}
	return &Service{repo: repo, drops: drops, clock: clk, log: log.Named("waitlist"), metrics: rec}
}

// Join adds the user to the drop's waitlist. Joining twice returns the first entry.
func (s *Service) Join(ctx context.Context, dropID, userID int64) (*Entry, error) {
	d, err := s.drops.Get(ctx, dropID)
	if err != nil {
		return nil, err
	}
	if !d.Claimable() {
		return nil, ErrDropNotActive
	}
	now := s.clock.Now()
	if d.Expired(now) {
		return nil, ErrDropExpired
	}

	e, created, err := s.repo.Insert(ctx, dropID, userID, now)
	if err != nil {
		return nil, err
	}
	s.metrics.WaitlistJoin(created)
	if created {
		s.log.Info("waitlist joined", zap.Int64("drop_id", dropID), zap.Int64("user_id", userID))
	}
	return e, nil
}

func (s *Service) Leave(ctx context.Context, dropID, userID int64) error {
	if _, err := s.drops.Get(ctx, dropID); err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, dropID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.log.Info("waitlist left", zap.Int64("drop_id", dropID), zap.Int64("user_id", userID))
	return nil
}

func (s *Service) Position(ctx context.Context, dropID, userID int64) (*Position, error) {
	return s.repo.Position(ctx, dropID, userID)
}

func (s *Service) Count(ctx context.Context, dropID int64) (int, error) {
	if _, err := s.drops.Get(ctx, dropID); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, dropID)
}

// IsMember reports whether the user holds an entry for the drop.
func (s *Service) IsMember(ctx context.Context, dropID, userID int64) (bool, error) {
	_, err := s.repo.Get(ctx, dropID, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) ListMine(ctx context.Context, userID int64) ([]Entry, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ListByDrop returns the queue oldest first.
func (s *Service) ListByDrop(ctx context.Context, dropID int64, page types.Page) ([]Entry, error) {
	if _, err := s.drops.Get(ctx, dropID); err != nil {
		return nil, err
	}
	return s.repo.ListByDrop(ctx, dropID, page.Normalize())
}
