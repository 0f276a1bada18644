// README: Waitlist store backed by PostgreSQL; uniqueness lives in uq_waitlist_drop_user.
package waitlist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dropspot/internal/types"
)

const entryColumns = `id, drop_id, user_id, is_notified, notified_at, created_at`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Insert creates the entry unless one exists; created is false when the existing row is returned.
func (s *Store) Insert(ctx context.Context, dropID, userID int64, now time.Time) (*Entry, bool, error) {
	e, err := scanEntry(s.db.QueryRow(ctx, `
		INSERT INTO waitlist_entries (drop_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (drop_id, user_id) DO NOTHING
		RETURNING `+entryColumns, dropID, userID, now))
	if err == nil {
		return e, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	e, err = s.Get(ctx, dropID, userID)
	if err != nil {
		return nil, false, err
	}
	return e, false, nil
}

func (s *Store) Get(ctx context.Context, dropID, userID int64) (*Entry, error) {
	e, err := scanEntry(s.db.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM waitlist_entries
		WHERE drop_id = $1 AND user_id = $2`, dropID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) Delete(ctx context.Context, dropID, userID int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM waitlist_entries WHERE drop_id = $1 AND user_id = $2`, dropID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Position(ctx context.Context, dropID, userID int64) (*Position, error) {
	p := Position{DropID: dropID}
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM waitlist_entries o
			  WHERE o.drop_id = w.drop_id AND (o.created_at, o.id) < (w.created_at, w.id)) + 1,
			(SELECT COUNT(*) FROM waitlist_entries o WHERE o.drop_id = w.drop_id)
		FROM waitlist_entries w
		WHERE w.drop_id = $1 AND w.user_id = $2`, dropID, userID,
	).Scan(&p.Position, &p.Total)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) Count(ctx context.Context, dropID int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM waitlist_entries WHERE drop_id = $1`, dropID).Scan(&n)
	return n, err
}

func (s *Store) ListByUser(ctx context.Context, userID int64) ([]Entry, error) {
	return s.query(ctx, `
		SELECT `+entryColumns+` FROM waitlist_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, userID)
}

func (s *Store) ListByDrop(ctx context.Context, dropID int64, page types.Page) ([]Entry, error) {
	page = page.Normalize()
	return s.query(ctx, `
		SELECT `+entryColumns+` FROM waitlist_entries
		WHERE drop_id = $1
		ORDER BY created_at ASC, id ASC
		OFFSET $2 LIMIT $3`, dropID, page.Skip, page.Limit)
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]Entry, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	if err := row.Scan(&e.ID, &e.DropID, &e.UserID, &e.IsNotified, &e.NotifiedAt, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
