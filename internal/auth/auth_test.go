package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropspot/internal/clock"
	"dropspot/internal/errs"
)

const secret = "test-secret-key"

var t0 = time.Date(2024, 11, 7, 12, 0, 0, 0, time.UTC)

func TestIssueAndVerify(t *testing.T) {
	token, err := IssueToken(secret, Principal{
		UserID: 42, Username: "ayse", Permissions: []Permission{PermReviewClaims},
	}, time.Hour, t0)
	require.NoError(t, err)

	p, err := NewJWTVerifier(secret, clock.NewFakeClock(t0.Add(time.Minute))).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.UserID)
	assert.Equal(t, "ayse", p.Username)
	assert.False(t, p.IsSuperuser)
	assert.Equal(t, []Permission{PermReviewClaims}, p.Permissions)
}

func TestVerify_Expired(t *testing.T) {
	token, err := IssueToken(secret, Principal{UserID: 1}, time.Minute, t0)
	require.NoError(t, err)

	_, err = NewJWTVerifier(secret, clock.NewFakeClock(t0.Add(2*time.Minute))).Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_Rejects(t *testing.T) {
	v := NewJWTVerifier(secret, clock.NewFakeClock(t0))
	ctx := context.Background()

	sign := func(claims jwt.MapClaims, key string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return s
	}
	exp := jwt.NewNumericDate(t0.Add(time.Hour))

	cases := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": sign(jwt.MapClaims{"sub": "1", "type": "access", "exp": exp}, "other"),
		"refresh":      sign(jwt.MapClaims{"sub": "1", "type": "refresh", "exp": exp}, secret),
		"no sub":       sign(jwt.MapClaims{"type": "access", "exp": exp}, secret),
		"bad sub":      sign(jwt.MapClaims{"sub": "abc", "type": "access", "exp": exp}, secret),
		"no exp":       sign(jwt.MapClaims{"sub": "1", "type": "access"}, secret),
		"none alg": func() string {
			s, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "type": "access", "exp": exp}).
				SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)
			return s
		}(),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(ctx, token)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestVerify_NumericSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": 7, "username": "admin", "is_superuser": true, "type": "access",
		"exp": jwt.NewNumericDate(t0.Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	p, err := NewJWTVerifier(secret, clock.NewFakeClock(t0)).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.UserID)
	assert.True(t, p.IsSuperuser)
}

type stubChecker struct {
	grants map[Permission]bool
	err    error
}

func (s stubChecker) HasPermission(_ context.Context, _ int64, perm Permission) (bool, error) {
	return s.grants[perm], s.err
}

func TestAuthorizer(t *testing.T) {
	ctx := context.Background()
	admin := &Principal{UserID: 1, IsSuperuser: true}
	reviewer := &Principal{UserID: 2, Permissions: []Permission{PermReviewClaims}}
	user := &Principal{UserID: 3}

	bare := NewAuthorizer(nil)
	assert.NoError(t, bare.Require(ctx, admin, PermManageDrops))
	assert.NoError(t, bare.Require(ctx, reviewer, PermReviewClaims))
	assert.ErrorIs(t, bare.Require(ctx, reviewer, PermManageDrops), errs.ErrForbidden)
	assert.ErrorIs(t, bare.Require(ctx, user, PermViewStats), errs.ErrForbidden)
	assert.ErrorIs(t, bare.Require(ctx, nil, PermViewStats), errs.ErrForbidden)

	withRoles := NewAuthorizer(stubChecker{grants: map[Permission]bool{PermViewStats: true}})
	assert.NoError(t, withRoles.Require(ctx, user, PermViewStats))
	assert.ErrorIs(t, withRoles.Require(ctx, user, PermManageDrops), errs.ErrForbidden)

	boom := errors.New("role store down")
	failing := NewAuthorizer(stubChecker{err: boom})
	err := failing.Require(ctx, user, PermViewStats)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, failing.Require(ctx, admin, PermViewStats))
}
