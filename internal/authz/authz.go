// Package authz holds the two gate checks every tenant-scoped operation
// must pass: the permission evaluator and the tenant isolation guard. Both
// are pure and safe for concurrent use.
package authz

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gourmet-pos/api/internal/permission"
)

var (
	// ErrPermissionDenied means the principal's role grid lacks a
	// required permission.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrCrossTenantAccess means the target entity belongs to a
	// different restaurant than the principal.
	ErrCrossTenantAccess = errors.New("cross-tenant access")
)

// Principal is an authenticated user with their tenant and role context.
// Grid is nil when the user's role could not be resolved; every check then
// denies.
type Principal struct {
	UserID       uuid.UUID
	RestaurantID uuid.UUID
	RoleID       uuid.UUID
	Grid         *permission.Grid
}

// Evaluator decides allow/deny for a principal against a required
// permission set.
type Evaluator struct{}

func NewEvaluator() *Evaluator { return &Evaluator{} }

// Authorize allows only when every required permission is granted by the
// principal's grid. A missing principal or grid always denies. An invalid
// permission value is a configuration error, not a denial.
func (e *Evaluator) Authorize(p *Principal, required ...permission.Permission) error {
	for _, perm := range required {
		if err := perm.Validate(); err != nil {
			return err
		}
	}
	if p == nil || p.Grid == nil {
		return ErrPermissionDenied
	}
	for _, perm := range required {
		if !p.Grid.Allows(perm) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, perm)
		}
	}
	return nil
}

// Guard enforces the tenant boundary.
type Guard struct{}

func NewGuard() *Guard { return &Guard{} }

// SameTenant allows only when the entity's resolved restaurant matches the
// principal's.
func (g *Guard) SameTenant(principalRestaurantID, entityRestaurantID uuid.UUID) error {
	if principalRestaurantID != entityRestaurantID {
		return ErrCrossTenantAccess
	}
	return nil
}

// IsForbidden reports whether err is a permission or tenant failure. The
// HTTP layer must answer both with the same forbidden response so callers
// cannot probe for resources in other restaurants.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrCrossTenantAccess)
}
