// README: Claim store backed by PostgreSQL. Stock and claim rows change in the same transaction.
package claim

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"dropspot/internal/modules/drop"
	"dropspot/internal/types"
)

const (
	claimColumns = `
		id, drop_id, user_id, quantity, status,
		claim_latitude, claim_longitude, distance_from_drop,
		verification_code, is_verified, verified_at, created_at, updated_at`

	uniqueViolation      = "23505"
	codeUniqueConstraint = "uq_claim_verification_code"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id int64) (*Claim, error) {
	return s.getOne(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id)
}

func (s *Store) GetByDropUser(ctx context.Context, dropID, userID int64) (*Claim, error) {
	return s.getOne(ctx, `SELECT `+claimColumns+` FROM claims WHERE drop_id = $1 AND user_id = $2`, dropID, userID)
}

// CreateReserved reserves stock and inserts the claim atomically. When the user already
// holds a claim on the drop, the reservation is rolled back and that claim is returned
// with created=false.
func (s *Store) CreateReserved(ctx context.Context, c *Claim) (*Claim, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := drop.Reserve(ctx, tx, c.DropID, c.Quantity)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		_ = tx.Rollback(ctx)
		return s.existingOr(ctx, c, ErrInsufficientStock)
	}

	created, err := scanClaim(tx.QueryRow(ctx, `
		INSERT INTO claims (
			drop_id, user_id, quantity, status,
			claim_latitude, claim_longitude, distance_from_drop,
			verification_code, is_verified, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)
		ON CONFLICT (drop_id, user_id) DO NOTHING
		RETURNING `+claimColumns,
		c.DropID, c.UserID, c.Quantity, string(StatusPending),
		c.Location.Lat, c.Location.Lng, c.DistanceFromDrop,
		c.VerificationCode, c.CreatedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		_ = tx.Rollback(ctx)
		return s.existingOr(ctx, c, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == codeUniqueConstraint {
		return nil, false, ErrCodeCollision
	}
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (s *Store) existingOr(ctx context.Context, c *Claim, fallback error) (*Claim, bool, error) {
	existing, err := s.GetByDropUser(ctx, c.DropID, c.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, false, fallback
	}
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Verify approves a pending claim whose code matches. ok is false when no row qualified.
func (s *Store) Verify(ctx context.Context, id int64, code string, now time.Time) (*Claim, bool, error) {
	return s.updateOne(ctx, `
		UPDATE claims SET status = 'approved', is_verified = TRUE, verified_at = $3, updated_at = $3
		WHERE id = $1 AND verification_code = $2 AND status = 'pending' AND NOT is_verified
		RETURNING `+claimColumns, id, code, now)
}

func (s *Store) Approve(ctx context.Context, id int64, now time.Time) (*Claim, bool, error) {
	return s.updateOne(ctx, `
		UPDATE claims SET status = 'approved', is_verified = TRUE, verified_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING `+claimColumns, id, now)
}

// CancelAndRelease deletes an unverified pending claim owned by userID and returns its stock.
func (s *Store) CancelAndRelease(ctx context.Context, id, userID int64) (*Claim, bool, error) {
	return s.withRelease(ctx, `
		DELETE FROM claims
		WHERE id = $1 AND user_id = $2 AND status = 'pending' AND NOT is_verified
		RETURNING `+claimColumns, id, userID)
}

// RejectAndRelease marks a claim rejected and returns its stock, at most once per claim.
func (s *Store) RejectAndRelease(ctx context.Context, id int64, now time.Time) (*Claim, bool, error) {
	return s.withRelease(ctx, `
		UPDATE claims SET status = 'rejected', updated_at = $2
		WHERE id = $1 AND status <> 'rejected'
		RETURNING `+claimColumns, id, now)
}

func (s *Store) withRelease(ctx context.Context, sql string, args ...any) (*Claim, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c, err := scanClaim(tx.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := drop.Release(ctx, tx, c.DropID, c.Quantity); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (s *Store) ListByUser(ctx context.Context, userID int64) ([]Claim, error) {
	return s.query(ctx, `
		SELECT `+claimColumns+` FROM claims
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, userID)
}

func (s *Store) List(ctx context.Context, f ListFilter, page types.Page) ([]Claim, error) {
	page = page.Normalize()
	var status *string
	if f.Status != "" {
		v := string(f.Status)
		status = &v
	}
	var dropID *int64
	if f.DropID != 0 {
		dropID = &f.DropID
	}
	return s.query(ctx, `
		SELECT `+claimColumns+` FROM claims
		WHERE ($1::text IS NULL OR status = $1::text)
		  AND ($2::bigint IS NULL OR drop_id = $2::bigint)
		ORDER BY created_at DESC, id DESC
		OFFSET $3 LIMIT $4`, status, dropID, page.Skip, page.Limit)
}

func (s *Store) getOne(ctx context.Context, sql string, args ...any) (*Claim, error) {
	c, err := scanClaim(s.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) updateOne(ctx context.Context, sql string, args ...any) (*Claim, bool, error) {
	c, err := scanClaim(s.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]Claim, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Claim, 0)
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*Claim, error) {
	var c Claim
	var status string
	err := row.Scan(
		&c.ID, &c.DropID, &c.UserID, &c.Quantity, &status,
		&c.Location.Lat, &c.Location.Lng, &c.DistanceFromDrop,
		&c.VerificationCode, &c.IsVerified, &c.VerifiedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = Status(status)
	return &c, nil
}
