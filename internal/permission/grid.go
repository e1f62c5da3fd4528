package permission

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidGrid reports a permission grid that names unknown resources or
// grants actions a resource does not support.
var ErrInvalidGrid = errors.New("invalid permission grid")

// ActionSet holds the allowed-action flags for one resource. The zero value
// denies everything.
type ActionSet struct {
	Create bool `json:"create,omitempty"`
	Read   bool `json:"read,omitempty"`
	Update bool `json:"update,omitempty"`
	Delete bool `json:"delete,omitempty"`
}

func (a ActionSet) allows(act Action) bool {
	switch act {
	case ActionCreate:
		return a.Create
	case ActionRead:
		return a.Read
	case ActionUpdate:
		return a.Update
	case ActionDelete:
		return a.Delete
	}
	return false
}

// Grid is a role's permission grid: one ActionSet per resource. The shape
// is fixed so a persisted grid can never smuggle in unknown resources. The
// zero value denies every permission.
type Grid struct {
	Orders     ActionSet `json:"orders"`
	Menu       ActionSet `json:"menu"`
	Users      ActionSet `json:"users"`
	Tables     ActionSet `json:"tables"`
	Statistics ActionSet `json:"statistics"`
	Payments   ActionSet `json:"payments"`
}

// Allows reports whether the grid grants the given permission. Unknown
// resources are denied, never treated as allowed.
func (g Grid) Allows(p Permission) bool {
	switch p.Resource {
	case ResourceOrders:
		return g.Orders.allows(p.Action)
	case ResourceMenu:
		return g.Menu.allows(p.Action)
	case ResourceUsers:
		return g.Users.allows(p.Action)
	case ResourceTables:
		return g.Tables.allows(p.Action)
	case ResourceStatistics:
		// statistics is read-only regardless of stored flags
		return p.Action == ActionRead && g.Statistics.Read
	case ResourcePayments:
		return g.Payments.allows(p.Action)
	}
	return false
}

// Validate rejects flags for actions a resource does not support.
func (g Grid) Validate() error {
	if g.Statistics.Create || g.Statistics.Update || g.Statistics.Delete {
		return fmt.Errorf("%w: statistics only supports read", ErrInvalidGrid)
	}
	return nil
}

// ParseGrid decodes a stored or submitted JSON grid, rejecting unknown
// resource or action keys instead of silently ignoring them.
func ParseGrid(data []byte) (Grid, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var g Grid
	if err := dec.Decode(&g); err != nil {
		return Grid{}, fmt.Errorf("%w: %v", ErrInvalidGrid, err)
	}
	if err := g.Validate(); err != nil {
		return Grid{}, err
	}
	return g, nil
}

// FullAccess returns a grid granting every valid permission. Used for the
// administrator role created by the seed command.
func FullAccess() Grid {
	all := ActionSet{Create: true, Read: true, Update: true, Delete: true}
	return Grid{
		Orders:     all,
		Menu:       all,
		Users:      all,
		Tables:     all,
		Statistics: ActionSet{Read: true},
		Payments:   all,
	}
}
