// README: Drop store backed by PostgreSQL; stock moves only through Reserve/Release.
package drop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"dropspot/internal/types"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrReleaseMismatch means a release asked for more units than are claimed.
var ErrReleaseMismatch = errors.New("drop release exceeds claimed quantity")

const dropColumns = `
	id, title, description, image_url, address,
	total_quantity, claimed_quantity, remaining_quantity,
	latitude, longitude, radius_meters,
	start_time, end_time, status, is_active,
	created_by, created_at, updated_at`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, d *Drop) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO drops (
			title, description, image_url, address,
			total_quantity, claimed_quantity, remaining_quantity,
			latitude, longitude, radius_meters,
			start_time, end_time, status, is_active, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at`,
		d.Title, d.Description, d.ImageURL, d.Address,
		d.TotalQuantity, d.ClaimedQuantity, d.RemainingQuantity,
		d.Location.Lat, d.Location.Lng, d.RadiusMeters,
		d.StartTime, d.EndTime, string(d.Status), d.IsActive, d.CreatedBy,
	).Scan(&d.ID, &d.CreatedAt)
}

func (s *Store) Get(ctx context.Context, id int64) (*Drop, error) {
	d, err := scanDrop(s.db.QueryRow(ctx, `SELECT `+dropColumns+` FROM drops WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Update applies a partial update in one statement. Resizing moves remaining by the
// same delta as total; ok is false when the new total would drop below claimed.
func (s *Store) Update(ctx context.Context, id int64, cmd UpdateCommand, now time.Time) (*Drop, bool, error) {
	var status *string
	if cmd.Status != nil {
		v := string(*cmd.Status)
		status = &v
	}
	d, err := scanDrop(s.db.QueryRow(ctx, `
		UPDATE drops SET
			title              = COALESCE($2::text, title),
			description        = COALESCE($3::text, description),
			image_url          = COALESCE($4::text, image_url),
			address            = COALESCE($5::text, address),
			remaining_quantity = CASE WHEN $6::int IS NULL THEN remaining_quantity
			                          ELSE remaining_quantity + ($6::int - total_quantity) END,
			total_quantity     = COALESCE($6::int, total_quantity),
			radius_meters      = COALESCE($7::int, radius_meters),
			start_time         = COALESCE($8::timestamptz, start_time),
			end_time           = COALESCE($9::timestamptz, end_time),
			status             = COALESCE($10::text, status),
			is_active          = COALESCE($11::boolean, is_active),
			updated_at         = $12
		WHERE id = $1 AND ($6::int IS NULL OR $6::int >= claimed_quantity)
		RETURNING `+dropColumns,
		id, cmd.Title, cmd.Description, cmd.ImageURL, cmd.Address,
		cmd.TotalQuantity, cmd.RadiusMeters, cmd.StartTime, cmd.EndTime,
		status, cmd.IsActive, now,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

// SoftDelete clears is_active. It reports false when the drop does not exist.
func (s *Store) SoftDelete(ctx context.Context, id int64, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE drops SET is_active = FALSE, updated_at = $2
		WHERE id = $1`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) List(ctx context.Context, f Filter, page types.Page) ([]Drop, error) {
	page = page.Normalize()
	var status *string
	if f.Status != "" {
		v := string(f.Status)
		status = &v
	}
	return queryDrops(ctx, s.db, `
		SELECT `+dropColumns+` FROM drops
		WHERE is_active AND ($1::text IS NULL OR status = $1::text)
		ORDER BY start_time DESC, id DESC
		OFFSET $2 LIMIT $3`, status, page.Skip, page.Limit)
}

func (s *Store) ListActive(ctx context.Context, now time.Time, page types.Page) ([]Drop, error) {
	page = page.Normalize()
	return queryDrops(ctx, s.db, `
		SELECT `+dropColumns+` FROM drops
		WHERE is_active AND status = 'active' AND start_time <= $1 AND end_time >= $1
		ORDER BY start_time DESC, id DESC
		OFFSET $2 LIMIT $3`, now, page.Skip, page.Limit)
}

func (s *Store) ListUpcoming(ctx context.Context, now time.Time, page types.Page) ([]Drop, error) {
	page = page.Normalize()
	return queryDrops(ctx, s.db, `
		SELECT `+dropColumns+` FROM drops
		WHERE is_active AND status = 'active' AND start_time > $1
		ORDER BY start_time ASC, id ASC
		OFFSET $2 LIMIT $3`, now, page.Skip, page.Limit)
}

// ListLive returns drops inside their claim window. A nil ids slice means no id filter.
func (s *Store) ListLive(ctx context.Context, now time.Time, ids []int64) ([]Drop, error) {
	return queryDrops(ctx, s.db, `
		SELECT `+dropColumns+` FROM drops
		WHERE is_active AND status = 'active' AND start_time <= $1 AND end_time >= $1
		  AND ($2::bigint[] IS NULL OR id = ANY($2::bigint[]))`, now, ids)
}

// ListIndexable returns every drop that belongs in the geo index.
func (s *Store) ListIndexable(ctx context.Context) ([]Drop, error) {
	return queryDrops(ctx, s.db, `
		SELECT `+dropColumns+` FROM drops
		WHERE is_active AND status <> 'cancelled'`)
}

// Reserve takes qty units of stock if available, flipping the drop to completed when
// it hits zero. It reports false when the conditional update matched no row.
func Reserve(ctx context.Context, db DBTX, dropID int64, qty int) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE drops SET
			remaining_quantity = remaining_quantity - $2,
			claimed_quantity   = claimed_quantity + $2,
			status = CASE WHEN remaining_quantity - $2 = 0 THEN 'completed' ELSE status END,
			updated_at = NOW()
		WHERE id = $1 AND is_active AND status = 'active' AND remaining_quantity >= $2`,
		dropID, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Release returns qty units of stock and reopens a completed drop.
func Release(ctx context.Context, db DBTX, dropID int64, qty int) error {
	tag, err := db.Exec(ctx, `
		UPDATE drops SET
			remaining_quantity = remaining_quantity + $2,
			claimed_quantity   = claimed_quantity - $2,
			status = CASE WHEN status = 'completed' AND remaining_quantity + $2 > 0 THEN 'active' ELSE status END,
			updated_at = NOW()
		WHERE id = $1 AND claimed_quantity >= $2`,
		dropID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("release %d from drop %d: %w", qty, dropID, ErrReleaseMismatch)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDrop(row rowScanner) (*Drop, error) {
	var d Drop
	var status string
	err := row.Scan(
		&d.ID, &d.Title, &d.Description, &d.ImageURL, &d.Address,
		&d.TotalQuantity, &d.ClaimedQuantity, &d.RemainingQuantity,
		&d.Location.Lat, &d.Location.Lng, &d.RadiusMeters,
		&d.StartTime, &d.EndTime, &status, &d.IsActive,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = Status(status)
	return &d, nil
}

func queryDrops(ctx context.Context, db DBTX, sql string, args ...any) ([]Drop, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Drop, 0)
	for rows.Next() {
		d, err := scanDrop(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
