package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropspot/internal/auth"
	"dropspot/internal/errs"
	"dropspot/internal/modules/claim"
	"dropspot/internal/modules/drop"
	"dropspot/internal/modules/waitlist"
	"dropspot/internal/types"
)

type fakeDrops struct {
	created []drop.CreateCommand
	deleted []int64
	known   map[int64]bool
}

func (f *fakeDrops) Create(_ context.Context, cmd drop.CreateCommand) (*drop.Drop, error) {
	f.created = append(f.created, cmd)
	return &drop.Drop{ID: int64(len(f.created)), Title: cmd.Title, CreatedBy: cmd.CreatedBy}, nil
}

func (f *fakeDrops) Update(_ context.Context, id int64, cmd drop.UpdateCommand) (*drop.Drop, error) {
	if !f.known[id] {
		return nil, drop.ErrNotFound
	}
	return &drop.Drop{ID: id, Title: *cmd.Title}, nil
}

func (f *fakeDrops) SoftDelete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDrops) Get(_ context.Context, id int64) (*drop.Drop, error) {
	if !f.known[id] {
		return nil, drop.ErrNotFound
	}
	return &drop.Drop{ID: id}, nil
}

type fakeClaims struct {
	lastFilter claim.ListFilter
	calls      []string
}

func (f *fakeClaims) Approve(_ context.Context, id int64) (*claim.Claim, error) {
	f.calls = append(f.calls, "approve")
	return &claim.Claim{ID: id, Status: claim.StatusApproved}, nil
}

func (f *fakeClaims) Reject(_ context.Context, id int64) (*claim.Claim, error) {
	f.calls = append(f.calls, "reject")
	return &claim.Claim{ID: id, Status: claim.StatusRejected}, nil
}

func (f *fakeClaims) List(_ context.Context, filter claim.ListFilter, _ types.Page) ([]claim.Claim, error) {
	f.lastFilter = filter
	return []claim.Claim{{ID: 1, DropID: filter.DropID}}, nil
}

type fakeWaitlist struct{ entries []waitlist.Entry }

func (f fakeWaitlist) ListByDrop(_ context.Context, _ int64, page types.Page) ([]waitlist.Entry, error) {
	end := page.Skip + page.Limit
	if end > len(f.entries) {
		end = len(f.entries)
	}
	if page.Skip >= end {
		return nil, nil
	}
	return f.entries[page.Skip:end], nil
}

type fakeStats struct{}

func (fakeStats) Stats(context.Context) (*Stats, error) {
	return &Stats{TotalDrops: 3, ActiveDrops: 2}, nil
}

type positionScorer struct{}

func (positionScorer) PriorityScore(_, _ int64, position int) float64 { return float64(position * 10) }

var (
	superuser = &auth.Principal{UserID: 1, IsSuperuser: true}
	reviewer  = &auth.Principal{UserID: 2, Permissions: []auth.Permission{auth.PermReviewClaims}}
	plainUser = &auth.Principal{UserID: 3}
)

func newTestService() (*Service, *fakeDrops, *fakeClaims) {
	drops := &fakeDrops{known: map[int64]bool{7: true}}
	claims := &fakeClaims{}
	entries := make([]waitlist.Entry, 0, 5)
	for i := int64(1); i <= 5; i++ {
		entries = append(entries, waitlist.Entry{ID: i, DropID: 7, UserID: 100 + i})
	}
	svc := NewService(Deps{
		Drops:    drops,
		Claims:   claims,
		Waitlist: fakeWaitlist{entries: entries},
		Stats:    fakeStats{},
		Scorer:   positionScorer{},
		Authz:    auth.NewAuthorizer(nil),
	})
	return svc, drops, claims
}

func TestPermissionGate(t *testing.T) {
	svc, drops, claims := newTestService()
	ctx := context.Background()

	_, err := svc.CreateDrop(ctx, plainUser, drop.CreateCommand{Title: "x"})
	assert.ErrorIs(t, err, errs.ErrForbidden)
	_, err = svc.CreateDrop(ctx, reviewer, drop.CreateCommand{Title: "x"})
	assert.ErrorIs(t, err, errs.ErrForbidden)
	assert.ErrorIs(t, svc.SoftDeleteDrop(ctx, nil, 7), errs.ErrForbidden)
	_, err = svc.ApproveClaim(ctx, plainUser, 1)
	assert.ErrorIs(t, err, errs.ErrForbidden)
	_, err = svc.Stats(ctx, reviewer)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	assert.Empty(t, drops.created)
	assert.Empty(t, drops.deleted)
	assert.Empty(t, claims.calls)
}

func TestDropCRUD(t *testing.T) {
	svc, drops, _ := newTestService()
	ctx := context.Background()

	d, err := svc.CreateDrop(ctx, superuser, drop.CreateCommand{Title: "sneakers", CreatedBy: 99})
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.CreatedBy)

	title := "renamed"
	d, err = svc.UpdateDrop(ctx, superuser, 7, drop.UpdateCommand{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "renamed", d.Title)

	_, err = svc.UpdateDrop(ctx, superuser, 8, drop.UpdateCommand{Title: &title})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, svc.SoftDeleteDrop(ctx, superuser, 7))
	assert.Equal(t, []int64{7}, drops.deleted)
}

func TestClaimReview(t *testing.T) {
	svc, _, claims := newTestService()
	ctx := context.Background()

	c, err := svc.ApproveClaim(ctx, reviewer, 5)
	require.NoError(t, err)
	assert.Equal(t, claim.StatusApproved, c.Status)

	c, err = svc.RejectClaim(ctx, reviewer, 5)
	require.NoError(t, err)
	assert.Equal(t, claim.StatusRejected, c.Status)
	assert.Equal(t, []string{"approve", "reject"}, claims.calls)

	_, err = svc.ListClaims(ctx, reviewer, claim.ListFilter{Status: claim.StatusPending}, types.Page{})
	require.NoError(t, err)
	assert.Equal(t, claim.StatusPending, claims.lastFilter.Status)

	list, err := svc.DropClaims(ctx, reviewer, 7, types.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.lastFilter.DropID)
	assert.Len(t, list, 1)

	_, err = svc.DropClaims(ctx, reviewer, 8, types.Page{})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDropWaitlist_PositionsFollowPage(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	rows, err := svc.DropWaitlist(ctx, reviewer, 7, types.Page{Skip: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 3, rows[0].Position)
	assert.Equal(t, int64(103), rows[0].UserID)
	assert.Equal(t, 30.0, rows[0].PriorityScore)
	assert.Equal(t, 4, rows[1].Position)

	_, err = svc.DropWaitlist(ctx, reviewer, 8, types.Page{})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStats(t *testing.T) {
	svc, _, _ := newTestService()
	st, err := svc.Stats(context.Background(), &auth.Principal{UserID: 4, Permissions: []auth.Permission{auth.PermViewStats}})
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalDrops)
	assert.Equal(t, 2, st.ActiveDrops)
}
