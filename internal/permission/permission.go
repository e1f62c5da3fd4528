// Package permission defines the fixed resource/action vocabulary and the
// per-role permission grid. The grid is a closed shape: every resource is a
// named field, absent or false flags always mean deny.
package permission

import (
	"errors"
	"fmt"
	"strings"
)

// Resource names a protected area of the system.
type Resource string

const (
	ResourceOrders     Resource = "orders"
	ResourceMenu       Resource = "menu"
	ResourceUsers      Resource = "users"
	ResourceTables     Resource = "tables"
	ResourceStatistics Resource = "statistics"
	ResourcePayments   Resource = "payments"
)

// Action names an operation on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ErrInvalidSpec reports a permission string naming an unknown resource or
// an action that does not apply to it. This is a programming error, not a
// runtime denial.
var ErrInvalidSpec = errors.New("invalid permission spec")

// resourceActions is the complete vocabulary. Statistics is read-only.
var resourceActions = map[Resource][]Action{
	ResourceOrders:     {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	ResourceMenu:       {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	ResourceUsers:      {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	ResourceTables:     {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	ResourceStatistics: {ActionRead},
	ResourcePayments:   {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
}

// Permission is a single "resource.action" requirement.
type Permission struct {
	Resource Resource
	Action   Action
}

func (p Permission) String() string {
	return string(p.Resource) + "." + string(p.Action)
}

// Validate checks that the permission names a known resource and an action
// valid for it.
func (p Permission) Validate() error {
	actions, ok := resourceActions[p.Resource]
	if !ok {
		return fmt.Errorf("%w: unknown resource %q", ErrInvalidSpec, p.Resource)
	}
	for _, a := range actions {
		if a == p.Action {
			return nil
		}
	}
	return fmt.Errorf("%w: action %q not valid for resource %q", ErrInvalidSpec, p.Action, p.Resource)
}

// Parse builds a Permission from a "resource.action" string.
func Parse(s string) (Permission, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return Permission{}, fmt.Errorf("%w: %q", ErrInvalidSpec, s)
	}
	p := Permission{Resource: Resource(parts[0]), Action: Action(parts[1])}
	if err := p.Validate(); err != nil {
		return Permission{}, err
	}
	return p, nil
}

// Statically-checked permission values for call sites. Handlers and
// services pass these explicitly instead of carrying permission strings.
var (
	OrdersCreate = Permission{ResourceOrders, ActionCreate}
	OrdersRead   = Permission{ResourceOrders, ActionRead}
	OrdersUpdate = Permission{ResourceOrders, ActionUpdate}
	OrdersDelete = Permission{ResourceOrders, ActionDelete}

	MenuCreate = Permission{ResourceMenu, ActionCreate}
	MenuRead   = Permission{ResourceMenu, ActionRead}
	MenuUpdate = Permission{ResourceMenu, ActionUpdate}
	MenuDelete = Permission{ResourceMenu, ActionDelete}

	UsersCreate = Permission{ResourceUsers, ActionCreate}
	UsersRead   = Permission{ResourceUsers, ActionRead}
	UsersUpdate = Permission{ResourceUsers, ActionUpdate}
	UsersDelete = Permission{ResourceUsers, ActionDelete}

	TablesCreate = Permission{ResourceTables, ActionCreate}
	TablesRead   = Permission{ResourceTables, ActionRead}
	TablesUpdate = Permission{ResourceTables, ActionUpdate}
	TablesDelete = Permission{ResourceTables, ActionDelete}

	StatisticsRead = Permission{ResourceStatistics, ActionRead}

	PaymentsCreate = Permission{ResourcePayments, ActionCreate}
	PaymentsRead   = Permission{ResourcePayments, ActionRead}
	PaymentsUpdate = Permission{ResourcePayments, ActionUpdate}
	PaymentsDelete = Permission{ResourcePayments, ActionDelete}
)
