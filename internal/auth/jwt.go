// README: HS256 access-token verifier shared by every service, plus token minting for tests and the bench.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dropspot/internal/clock"
)

const accessTokenType = "access"

// TokenVerifier resolves a bearer credential to a Principal.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

type JWTVerifier struct {
	secret []byte
	clock  clock.Clock
}

func NewJWTVerifier(secret string, clk clock.Clock) *JWTVerifier {
	if clk == nil {
		clk = clock.New()
	}
	return &JWTVerifier{secret: []byte(secret), clock: clk}
}

// Verify accepts only unexpired HS256 access tokens whose sub is a user id.
func (v *JWTVerifier) Verify(_ context.Context, tokenStr string) (*Principal, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.clock.Now), jwt.WithExpirationRequired())
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	case !token.Valid:
		return nil, ErrUnauthenticated
	}
	if typ, _ := claims["type"].(string); typ != accessTokenType {
		return nil, fmt.Errorf("%w: not an access token", ErrUnauthenticated)
	}
	return PrincipalFromClaims(claims, "sub")
}

// IssueToken signs an access token for p valid for ttl from now.
func IssueToken(secret string, p Principal, ttl time.Duration, now time.Time) (string, error) {
	perms := make([]string, 0, len(p.Permissions))
	for _, perm := range p.Permissions {
		perms = append(perms, string(perm))
	}
	claims := jwt.MapClaims{
		"sub":          strconv.FormatInt(p.UserID, 10),
		"username":     p.Username,
		"is_superuser": p.IsSuperuser,
		"permissions":  perms,
		"type":         accessTokenType,
		"iat":          jwt.NewNumericDate(now),
		"exp":          jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
