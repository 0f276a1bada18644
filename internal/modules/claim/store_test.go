// README: Postgres-backed claim tests (skipped without DROPSPOT_TEST_DSN; run with -race).
package claim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropspot/internal/modules/codegen"
	"dropspot/internal/modules/drop"
	"dropspot/internal/modules/waitlist"
	"dropspot/internal/testutil"
	"dropspot/internal/types"
)

type pgWorld struct {
	db       *pgxpool.Pool
	drops    *drop.Store
	waitlist *waitlist.Service
	svc      *Service
}

func newPGWorld(t *testing.T) *pgWorld {
	t.Helper()
	db := testutil.Postgres(t)
	drops := drop.NewStore(db)
	wl := waitlist.NewService(waitlist.NewStore(db), drops, nil, nil, nil)
	gen := codegen.NewGenerator(codegen.SeedConfig{RepoURL: "https://github.com/dropspot/platform", FirstCommitEpoch: "1699000000", ProjectStart: "202411071200"})
	return &pgWorld{
		db:       db,
		drops:    drops,
		waitlist: wl,
		svc:      NewService(NewStore(db), drops, wl, gen, nil, nil, nil),
	}
}

func (w *pgWorld) seed(t *testing.T, total int, users ...int64) int64 {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	d := &drop.Drop{
		Title: "seed", TotalQuantity: total, RemainingQuantity: total,
		Location: istanbul, RadiusMeters: 100,
		StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour),
		Status: drop.StatusActive, IsActive: true, CreatedBy: 1,
	}
	require.NoError(t, w.drops.Create(ctx, d))
	for _, u := range users {
		_, err := w.waitlist.Join(ctx, d.ID, u)
		require.NoError(t, err)
	}
	return d.ID
}

func (w *pgWorld) balance(t *testing.T, dropID int64) *drop.Drop {
	t.Helper()
	d, err := w.drops.Get(context.Background(), dropID)
	require.NoError(t, err)
	require.Equal(t, d.TotalQuantity, d.ClaimedQuantity+d.RemainingQuantity)

	var held int
	require.NoError(t, w.db.QueryRow(context.Background(),
		`SELECT COALESCE(SUM(quantity), 0) FROM claims WHERE drop_id = $1 AND status <> 'rejected'`,
		dropID).Scan(&held))
	require.Equal(t, d.ClaimedQuantity, held)
	return d
}

func TestStore_ConcurrentClaimsNeverOversell(t *testing.T) {
	w := newPGWorld(t)
	const stock, users = 5, 40
	ids := make([]int64, 0, users)
	for u := int64(1); u <= users; u++ {
		ids = append(ids, u)
	}
	dropID := w.seed(t, stock, ids...)

	var wg sync.WaitGroup
	var won, soldOut int32
	start := make(chan struct{})
	for _, uid := range ids {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			<-start
			_, err := w.svc.Create(context.Background(), CreateCommand{DropID: dropID, UserID: uid, Location: istanbul})
			switch {
			case err == nil:
				atomic.AddInt32(&won, 1)
			case errors.Is(err, ErrInsufficientStock):
				atomic.AddInt32(&soldOut, 1)
			default:
				t.Errorf("user %d: %v", uid, err)
			}
		}(uid)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(stock), won)
	assert.Equal(t, int32(users-stock), soldOut)
	d := w.balance(t, dropID)
	assert.Equal(t, 0, d.RemainingQuantity)
	assert.Equal(t, drop.StatusCompleted, d.Status)
}

func TestStore_ConcurrentClaimsSameUser(t *testing.T) {
	w := newPGWorld(t)
	dropID := w.seed(t, 3, 7)

	const attempts = 10
	var wg sync.WaitGroup
	start := make(chan struct{})
	got := make(chan *Claim, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			c, err := w.svc.Create(context.Background(), CreateCommand{DropID: dropID, UserID: 7, Location: istanbul})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			got <- c
		}()
	}
	close(start)
	wg.Wait()
	close(got)

	var first *Claim
	for c := range got {
		if first == nil {
			first = c
			continue
		}
		assert.Equal(t, first.ID, c.ID)
		assert.Equal(t, first.VerificationCode, c.VerificationCode)
	}
	d := w.balance(t, dropID)
	assert.Equal(t, 2, d.RemainingQuantity)
}

func TestStore_LifecycleRestoresStock(t *testing.T) {
	w := newPGWorld(t)
	ctx := context.Background()
	dropID := w.seed(t, 1, 1, 2)

	a, err := w.svc.Create(ctx, CreateCommand{DropID: dropID, UserID: 1, Location: istanbul})
	require.NoError(t, err)
	assert.Equal(t, drop.StatusCompleted, w.balance(t, dropID).Status)

	_, err = w.svc.Create(ctx, CreateCommand{DropID: dropID, UserID: 2, Location: istanbul})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	require.NoError(t, w.svc.Cancel(ctx, a.ID, 1))
	d := w.balance(t, dropID)
	assert.Equal(t, 1, d.RemainingQuantity)
	assert.Equal(t, drop.StatusActive, d.Status)

	b, err := w.svc.Create(ctx, CreateCommand{DropID: dropID, UserID: 2, Location: istanbul})
	require.NoError(t, err)

	rejected, err := w.svc.Reject(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	_, err = w.svc.Reject(ctx, b.ID)
	require.NoError(t, err)

	d = w.balance(t, dropID)
	assert.Equal(t, 1, d.RemainingQuantity)
	assert.Equal(t, drop.StatusActive, d.Status)
}

func TestStore_VerifyAndCancelRace(t *testing.T) {
	w := newPGWorld(t)
	ctx := context.Background()
	dropID := w.seed(t, 2, 1)

	c, err := w.svc.Create(ctx, CreateCommand{DropID: dropID, UserID: 1, Location: istanbul})
	require.NoError(t, err)

	var wg sync.WaitGroup
	start := make(chan struct{})
	var verifyErr, cancelErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, verifyErr = w.svc.Verify(ctx, c.ID, 1, c.VerificationCode)
	}()
	go func() {
		defer wg.Done()
		<-start
		cancelErr = w.svc.Cancel(ctx, c.ID, 1)
	}()
	close(start)
	wg.Wait()

	d := w.balance(t, dropID)
	if cancelErr == nil {
		assert.Equal(t, 2, d.RemainingQuantity)
		_, err := w.svc.Get(ctx, c.ID, 1)
		assert.ErrorIs(t, err, ErrNotFound)
	} else {
		require.NoError(t, verifyErr)
		assert.ErrorIs(t, cancelErr, ErrVerifiedCannotCancel)
		assert.Equal(t, 1, d.RemainingQuantity)
	}
}

func TestStore_ListFilters(t *testing.T) {
	w := newPGWorld(t)
	ctx := context.Background()
	store := NewStore(w.db)
	first := w.seed(t, 5, 1, 2)
	second := w.seed(t, 5, 1)

	c1, err := w.svc.Create(ctx, CreateCommand{DropID: first, UserID: 1, Location: istanbul})
	require.NoError(t, err)
	_, err = w.svc.Create(ctx, CreateCommand{DropID: first, UserID: 2, Location: istanbul})
	require.NoError(t, err)
	_, err = w.svc.Create(ctx, CreateCommand{DropID: second, UserID: 1, Location: istanbul})
	require.NoError(t, err)
	_, err = w.svc.Approve(ctx, c1.ID)
	require.NoError(t, err)

	all, err := store.List(ctx, ListFilter{}, types.Page{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	onFirst, err := store.List(ctx, ListFilter{DropID: first}, types.Page{})
	require.NoError(t, err)
	assert.Len(t, onFirst, 2)

	pending, err := store.List(ctx, ListFilter{Status: StatusPending, DropID: first}, types.Page{})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(2), pending[0].UserID)

	mine, err := store.ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}
