// README: Postgres stats reader for the admin dashboard.
package admin

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM drops),
			(SELECT COUNT(*) FROM drops WHERE is_active AND status = 'active'),
			(SELECT COUNT(*) FROM claims),
			(SELECT COUNT(*) FROM claims WHERE status = 'pending'),
			(SELECT COUNT(*) FROM claims WHERE status = 'approved'),
			(SELECT COUNT(*) FROM waitlist_entries)`,
	).Scan(&st.TotalDrops, &st.ActiveDrops, &st.TotalClaims, &st.PendingClaims, &st.ApprovedClaims, &st.TotalWaitlist)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
