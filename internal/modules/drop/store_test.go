// README: Postgres-backed drop store tests (skipped without DROPSPOT_TEST_DSN; run with -race).
package drop

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropspot/internal/clock"
	"dropspot/internal/testutil"
	"dropspot/internal/types"
)

func seedDrop(t *testing.T, s *Store, total int) *Drop {
	t.Helper()
	now := time.Now().UTC()
	d := &Drop{
		Title:             "seed",
		TotalQuantity:     total,
		RemainingQuantity: total,
		Location:          istanbul,
		RadiusMeters:      100,
		StartTime:         now.Add(-time.Hour),
		EndTime:           now.Add(time.Hour),
		Status:            StatusActive,
		IsActive:          true,
		CreatedBy:         1,
	}
	require.NoError(t, s.Create(context.Background(), d))
	return d
}

func TestStore_CreateGetUpdate(t *testing.T) {
	store := NewStore(testutil.Postgres(t))
	ctx := context.Background()

	d := seedDrop(t, store, 5)
	got, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "seed", got.Title)
	assert.Equal(t, StatusActive, got.Status)
	assert.Nil(t, got.UpdatedAt)

	_, err = store.Get(ctx, d.ID+1000)
	assert.ErrorIs(t, err, ErrNotFound)

	title := "renamed"
	total := 7
	got, ok, err := store.Update(ctx, d.ID, UpdateCommand{Title: &title, TotalQuantity: &total}, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, 7, got.RemainingQuantity)
	assert.NotNil(t, got.UpdatedAt)
}

func TestStore_ReserveRelease(t *testing.T) {
	db := testutil.Postgres(t)
	store := NewStore(db)
	ctx := context.Background()

	d := seedDrop(t, store, 2)

	ok, err := Reserve(ctx, db, d.ID, 2)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RemainingQuantity)
	assert.Equal(t, StatusCompleted, got.Status)

	ok, err = Reserve(ctx, db, d.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, Release(ctx, db, d.ID, 1))
	got, err = store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RemainingQuantity)
	assert.Equal(t, 1, got.ClaimedQuantity)
	assert.Equal(t, StatusActive, got.Status)

	assert.ErrorIs(t, Release(ctx, db, d.ID, 5), ErrReleaseMismatch)

	// Shrinking below claimed matches no row.
	total := got.ClaimedQuantity - 1
	_, ok, err = store.Update(ctx, d.ID, UpdateCommand{TotalQuantity: &total}, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ConcurrentReserveNeverOversells(t *testing.T) {
	db := testutil.Postgres(t)
	store := NewStore(db)
	ctx := context.Background()

	const stock, attempts = 5, 40
	d := seedDrop(t, store, stock)

	var wg sync.WaitGroup
	var won atomic.Int32
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := Reserve(ctx, db, d.ID, 1)
			if err != nil {
				t.Errorf("reserve: %v", err)
				return
			}
			if ok {
				won.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(stock), won.Load())
	got, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RemainingQuantity)
	assert.Equal(t, stock, got.ClaimedQuantity)
}

func TestStore_Listings(t *testing.T) {
	store := NewStore(testutil.Postgres(t))
	ctx := context.Background()

	live := seedDrop(t, store, 1)
	hidden := seedDrop(t, store, 1)
	_, err := store.SoftDelete(ctx, hidden.ID, time.Now())
	require.NoError(t, err)

	all, err := store.List(ctx, Filter{}, types.Page{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, live.ID, all[0].ID)

	byID, err := store.ListLive(ctx, time.Now().UTC(), []int64{live.ID, hidden.ID})
	require.NoError(t, err)
	require.Len(t, byID, 1)

	everything, err := store.ListLive(ctx, time.Now().UTC(), nil)
	require.NoError(t, err)
	assert.Len(t, everything, 1)

	upcoming, err := store.ListUpcoming(ctx, time.Now().UTC(), types.Page{})
	require.NoError(t, err)
	assert.Empty(t, upcoming)
}

func TestGeoIndex_Search(t *testing.T) {
	idx := NewGeoIndex(testutil.Redis(t))
	ctx := context.Background()

	require.NoError(t, idx.Replace(ctx, []Drop{
		{ID: 1, Location: types.Point{Lat: 41.0182, Lng: 28.9784}},
		{ID: 2, Location: istanbul},
		{ID: 3, Location: types.Point{Lat: 41.2, Lng: 28.9784}},
	}))

	ids, err := idx.Search(ctx, istanbul, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, ids)

	require.NoError(t, idx.Remove(ctx, 2))
	require.NoError(t, idx.Add(ctx, 4, istanbul))
	ids, err = idx.Search(ctx, istanbul, 50)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 1, 3}, ids)
}

func TestNearby_RedisIndexBoundary(t *testing.T) {
	svc := NewService(newMemRepo(), NewGeoIndex(testutil.Redis(t)), nil, clock.NewFakeClock(t0), nil)
	ctx := context.Background()

	edge := validCreate()
	edge.Location = types.Point{Lat: 41.053162, Lng: 28.9784} // ~4999.5m north, ~5001m to Redis
	_, err := svc.Create(ctx, edge)
	require.NoError(t, err)

	got, err := svc.Nearby(ctx, NearbyQuery{Point: istanbul, RadiusKm: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 4999.5, got[0].DistanceMeters, 1)
}
