// README: Authenticated caller identity and the permission tags admin operations require.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

type Permission string

const (
	PermManageDrops  Permission = "drops:manage"
	PermReviewClaims Permission = "claims:review"
	PermViewStats    Permission = "stats:view"
)

var (
	ErrUnauthenticated = errors.New("could not validate credentials")
	ErrTokenExpired    = errors.New("token expired")
)

// Principal is the identity resolved from a bearer credential.
type Principal struct {
	UserID      int64        `json:"user_id"`
	Username    string       `json:"username"`
	IsSuperuser bool         `json:"is_superuser"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// Has reports whether the principal carries perm. Superusers carry every permission.
func (p *Principal) Has(perm Permission) bool {
	if p == nil {
		return false
	}
	if p.IsSuperuser {
		return true
	}
	for _, got := range p.Permissions {
		if got == perm {
			return true
		}
	}
	return false
}

// PrincipalFromClaims reads the custom claim layout shared by all token issuers. idKey names the claim
// holding the numeric user id.
func PrincipalFromClaims(claims map[string]any, idKey string) (*Principal, error) {
	id, err := claimInt64(claims[idKey])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnauthenticated, idKey, err)
	}
	p := &Principal{UserID: id}
	p.Username, _ = claims["username"].(string)
	p.IsSuperuser, _ = claims["is_superuser"].(bool)
	if raw, ok := claims["permissions"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok && s != "" {
				p.Permissions = append(p.Permissions, Permission(s))
			}
		}
	}
	return p, nil
}

func claimInt64(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("non-integer id %v", n)
		}
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, errors.New("missing")
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}
