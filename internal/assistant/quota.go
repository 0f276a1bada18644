// README: Monthly per-user assistant allowance stored in ai_usage and reset lazily.
package assistant

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// errNoAllowance means the conditional update matched no row: quota spent or user absent.
var errNoAllowance = errors.New("no allowance row")

type QuotaStore struct {
	db *pgxpool.Pool
}

func NewQuotaStore(db *pgxpool.Pool) *QuotaStore {
	return &QuotaStore{db: db}
}

// UseToken deducts one question, resetting the counter to allowance when the stored
// month is behind month.
func (s *QuotaStore) UseToken(ctx context.Context, userID int64, month string, allowance int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE ai_usage SET
			tokens_remaining = CASE WHEN last_reset_month <> $1 THEN $2 - 1 ELSE tokens_remaining - 1 END,
			last_reset_month = $1
		WHERE user_id = $3 AND (last_reset_month < $1 OR tokens_remaining > 0)`,
		month, allowance, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNoAllowance
	}
	return nil
}

// EnsureUser creates the allowance row if missing.
func (s *QuotaStore) EnsureUser(ctx context.Context, userID int64, month string, allowance int) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ai_usage (user_id, tokens_remaining, last_reset_month)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, allowance, month)
	return err
}

// Remaining reports the questions left for month without consuming one.
func (s *QuotaStore) Remaining(ctx context.Context, userID int64, month string, allowance int) (int, error) {
	var left int
	err := s.db.QueryRow(ctx, `
		SELECT CASE WHEN last_reset_month < $2 THEN $3 ELSE tokens_remaining END
		FROM ai_usage WHERE user_id = $1`, userID, month, allowance).Scan(&left)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return allowance, nil
		}
		return 0, err
	}
	return left, nil
}
