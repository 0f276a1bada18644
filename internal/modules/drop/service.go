// README: Drop registry service: validation, lifecycle edits, listings and nearby search.
package drop

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"dropspot/internal/clock"
	"dropspot/internal/modules/geo"
	"dropspot/internal/types"
)

type Repository interface {
	Create(ctx context.Context, d *Drop) error
	Get(ctx context.Context, id int64) (*Drop, error)
	Update(ctx context.Context, id int64, cmd UpdateCommand, now time.Time) (*Drop, bool, error)
	SoftDelete(ctx context.Context, id int64, now time.Time) (bool, error)
	List(ctx context.Context, f Filter, page types.Page) ([]Drop, error)
	ListActive(ctx context.Context, now time.Time, page types.Page) ([]Drop, error)
	ListUpcoming(ctx context.Context, now time.Time, page types.Page) ([]Drop, error)
	ListLive(ctx context.Context, now time.Time, ids []int64) ([]Drop, error)
	ListIndexable(ctx context.Context) ([]Drop, error)
}

// Index narrows nearby searches. It is advisory: results are re-checked against the store.
type Index interface {
	Add(ctx context.Context, id int64, p types.Point) error
	Remove(ctx context.Context, id int64) error
	Replace(ctx context.Context, drops []Drop) error
	Search(ctx context.Context, p types.Point, radiusKm float64) ([]int64, error)
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, p types.Point) (string, error)
}

type Service struct {
	repo     Repository
	index    Index
	geocoder Geocoder
	clock    clock.Clock
	log      *zap.Logger
}

// NewService builds the registry. index and geocoder may be nil.
func NewService(repo Repository, index Index, geocoder Geocoder, clk clock.Clock, log *zap.Logger) *Service {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, index: index, geocoder: geocoder, clock: clk, log: log.Named("drop")}
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Drop, error) {
	cmd.Title = strings.TrimSpace(cmd.Title)
	if cmd.RadiusMeters == 0 {
		cmd.RadiusMeters = DefaultRadiusMeters
	}
	if err := validateTitle(cmd.Title); err != nil {
		return nil, err
	}
	if cmd.TotalQuantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !cmd.Location.Valid() {
		return nil, ErrInvalidLocation
	}
	if cmd.RadiusMeters < 0 {
		return nil, ErrInvalidRadius
	}
	if !cmd.EndTime.After(cmd.StartTime) {
		return nil, ErrInvalidWindow
	}

	if cmd.Address == "" && s.geocoder != nil {
		if addr, err := s.geocoder.ReverseGeocode(ctx, cmd.Location); err == nil {
			cmd.Address = addr
		} else {
			s.log.Warn("reverse geocode failed", zap.Error(err))
		}
	}

	d := &Drop{
		Title:             cmd.Title,
		Description:       cmd.Description,
		ImageURL:          cmd.ImageURL,
		Address:           cmd.Address,
		TotalQuantity:     cmd.TotalQuantity,
		ClaimedQuantity:   0,
		RemainingQuantity: cmd.TotalQuantity,
		Location:          cmd.Location,
		RadiusMeters:      cmd.RadiusMeters,
		StartTime:         cmd.StartTime.UTC(),
		EndTime:           cmd.EndTime.UTC(),
		Status:            StatusActive,
		IsActive:          true,
		CreatedBy:         cmd.CreatedBy,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("drop created",
		zap.Int64("drop_id", d.ID),
		zap.Int("total_quantity", d.TotalQuantity),
		zap.Int64("created_by", d.CreatedBy))
	s.syncIndex(ctx, d)
	return d, nil
}

func (s *Service) Update(ctx context.Context, id int64, cmd UpdateCommand) (*Drop, error) {
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cmd.Title != nil {
		t := strings.TrimSpace(*cmd.Title)
		if err := validateTitle(t); err != nil {
			return nil, err
		}
		cmd.Title = &t
	}
	if cmd.TotalQuantity != nil {
		if *cmd.TotalQuantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if *cmd.TotalQuantity < cur.ClaimedQuantity {
			return nil, ErrShrinkBelowClaims
		}
	}
	if cmd.RadiusMeters != nil && *cmd.RadiusMeters <= 0 {
		return nil, ErrInvalidRadius
	}
	if cmd.Status != nil && !cmd.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	start, end := cur.StartTime, cur.EndTime
	if cmd.StartTime != nil {
		start = *cmd.StartTime
	}
	if cmd.EndTime != nil {
		end = *cmd.EndTime
	}
	if !end.After(start) {
		return nil, ErrInvalidWindow
	}

	d, ok, err := s.repo.Update(ctx, id, cmd, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		// Claims landed between the read and the write.
		return nil, ErrShrinkBelowClaims
	}
	s.log.Info("drop updated",
		zap.Int64("drop_id", d.ID),
		zap.Int("total_quantity", d.TotalQuantity),
		zap.Int("remaining_quantity", d.RemainingQuantity),
		zap.String("status", string(d.Status)),
		zap.Bool("is_active", d.IsActive))
	s.syncIndex(ctx, d)
	return d, nil
}

// SoftDelete hides the drop from every listing. Repeating it is a no-op.
func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	ok, err := s.repo.SoftDelete(ctx, id, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.log.Info("drop soft deleted", zap.Int64("drop_id", id))
	if s.index != nil {
		if err := s.index.Remove(ctx, id); err != nil {
			s.log.Warn("geo index remove failed", zap.Int64("drop_id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Drop, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, page types.Page) ([]Drop, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.List(ctx, f, page.Normalize())
}

func (s *Service) ListActive(ctx context.Context, page types.Page) ([]Drop, error) {
	return s.repo.ListActive(ctx, s.clock.Now(), page.Normalize())
}

func (s *Service) ListUpcoming(ctx context.Context, page types.Page) ([]Drop, error) {
	return s.repo.ListUpcoming(ctx, s.clock.Now(), page.Normalize())
}

// Nearby returns live drops within q.RadiusKm of q.Point, nearest first.
func (s *Service) Nearby(ctx context.Context, q NearbyQuery) ([]NearbyDrop, error) {
	if q.RadiusKm == 0 {
		q.RadiusKm = DefaultNearbyRadiusKm
	}
	if q.RadiusKm < 0 || q.RadiusKm > MaxNearbyRadiusKm {
		return nil, ErrInvalidSearch
	}
	if !q.Point.Valid() {
		return nil, ErrInvalidLocation
	}

	var ids []int64
	if s.index != nil {
		found, err := s.index.Search(ctx, q.Point, indexSearchRadiusKm(q.RadiusKm))
		if err != nil {
			s.log.Warn("geo index search failed, scanning store", zap.Error(err))
		} else if len(found) == 0 {
			return []NearbyDrop{}, nil
		} else {
			ids = found
		}
	}

	candidates, err := s.repo.ListLive(ctx, s.clock.Now(), ids)
	if err != nil {
		return nil, err
	}
	limit := q.RadiusKm * 1000
	out := make([]NearbyDrop, 0, len(candidates))
	for _, d := range candidates {
		dist := geo.Distance(q.Point, d.Location)
		if dist > limit {
			continue
		}
		out = append(out, NearbyDrop{Drop: d, DistanceMeters: geo.Round2(dist)})
	}
	geo.SortByDistance(out, func(n NearbyDrop) float64 { return n.DistanceMeters })
	return out, nil
}

// indexSearchRadiusKm pads the radius sent to the index. Redis GEO measures on a
// larger earth radius and snaps members to geohash cells, so drops just inside the
// haversine boundary can otherwise be missed; the exact filter runs afterwards.
func indexSearchRadiusKm(radiusKm float64) float64 {
	return radiusKm*1.001 + 0.01
}

// RebuildIndex reloads the geo index from the store.
func (s *Service) RebuildIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	drops, err := s.repo.ListIndexable(ctx)
	if err != nil {
		return err
	}
	if err := s.index.Replace(ctx, drops); err != nil {
		return err
	}
	s.log.Info("geo index rebuilt", zap.Int("drops", len(drops)))
	return nil
}

func (s *Service) syncIndex(ctx context.Context, d *Drop) {
	if s.index == nil {
		return
	}
	var err error
	if d.IsActive && d.Status != StatusCancelled {
		err = s.index.Add(ctx, d.ID, d.Location)
	} else {
		err = s.index.Remove(ctx, d.ID)
	}
	if err != nil {
		s.log.Warn("geo index update failed", zap.Int64("drop_id", d.ID), zap.Error(err))
	}
}

func validateTitle(t string) error {
	if n := utf8.RuneCountInString(t); n == 0 || n > MaxTitleLength {
		return ErrInvalidTitle
	}
	return nil
}
