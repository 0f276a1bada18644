// README: Admin gate: superuser, then token permissions, then an optional external checker.
package auth

import (
	"context"
	"fmt"

	"dropspot/internal/errs"
)

// PermissionChecker looks up permissions granted outside the token, e.g. through roles.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID int64, perm Permission) (bool, error)
}

type Authorizer struct {
	checker PermissionChecker
}

// NewAuthorizer builds an Authorizer. checker may be nil.
func NewAuthorizer(checker PermissionChecker) *Authorizer {
	return &Authorizer{checker: checker}
}

// Require returns a Forbidden error unless p holds perm.
func (a *Authorizer) Require(ctx context.Context, p *Principal, perm Permission) error {
	if p == nil {
		return errs.Forbidden("authentication required")
	}
	if p.Has(perm) {
		return nil
	}
	if a != nil && a.checker != nil {
		ok, err := a.checker.HasPermission(ctx, p.UserID, perm)
		if err != nil {
			return fmt.Errorf("check permission %s: %w", perm, err)
		}
		if ok {
			return nil
		}
	}
	return errs.Forbidden(fmt.Sprintf("permission %s required", perm))
}
