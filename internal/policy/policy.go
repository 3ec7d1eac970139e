// Package policy is the single place that decides who may do what with a
// recommendation.
//
// Authorize is pure: it looks only at the resolved caller, the requested
// action and (for record-level actions) the target. It never touches storage,
// so every rule in the table below is testable in isolation.
//
//	Action           anonymous        user (owner)   user (other)   admin
//	List             allow, all       allow, all     allow, all     allow, all
//	ListMine         unauthenticated  allow, own     -              allow, all
//	Add              unauthenticated  allow          -              allow
//	Remove           unauthenticated  allow          forbidden      allow
//	MarkStaffPick    unauthenticated  forbidden      forbidden      allow
package policy

import (
	"fmt"

	"github.com/sakif/hypeshelf/internal/apperror"
	"github.com/sakif/hypeshelf/internal/model"
)

// Action names an operation on the recommendation surface.
type Action string

const (
	ActionList          Action = "list"
	ActionListMine      Action = "list_mine"
	ActionAdd           Action = "add"
	ActionRemove        Action = "remove"
	ActionMarkStaffPick Action = "mark_staff_pick"
)

// Scope restricts which records a permitted read may see. A zero Scope means
// every record.
type Scope struct {
	OwnerID string
}

// All reports whether the scope is unrestricted.
func (s Scope) All() bool { return s.OwnerID == "" }

// Decision is the structured outcome of Authorize.
type Decision struct {
	Allowed bool
	Scope   Scope
	// Reason is the *apperror.AppError to return when Allowed is false.
	Reason *apperror.AppError
}

// Err returns nil for an allowed decision and the deny reason otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return d.Reason
}

func allow(scope Scope) Decision { return Decision{Allowed: true, Scope: scope} }

func deny(reason *apperror.AppError) Decision { return Decision{Reason: reason} }

// Authorize evaluates action for caller. caller is nil for anonymous
// requests. target is required for ActionRemove and ActionMarkStaffPick and
// ignored otherwise.
func Authorize(caller *model.User, action Action, target *model.Recommendation) Decision {
	if action == ActionList {
		return allow(Scope{})
	}

	if caller == nil {
		return deny(apperror.Unauthenticated(fmt.Sprintf("sign in required to %s", describe(action))))
	}

	admin := caller.Role.IsAdmin()

	switch action {
	case ActionListMine:
		if admin {
			return allow(Scope{})
		}
		return allow(Scope{OwnerID: caller.ID})

	case ActionAdd:
		return allow(Scope{})

	case ActionRemove:
		if target == nil {
			return deny(apperror.Forbidden("no recommendation to remove"))
		}
		if admin || target.OwnerID == caller.ID {
			return allow(Scope{})
		}
		return deny(apperror.Forbidden("insufficient permissions to remove this recommendation"))

	case ActionMarkStaffPick:
		if admin {
			return allow(Scope{})
		}
		return deny(apperror.Forbidden("only admins can mark staff picks"))
	}

	return deny(apperror.Forbidden(fmt.Sprintf("unknown action %q", action)))
}

func describe(a Action) string {
	switch a {
	case ActionListMine:
		return "view your recommendations"
	case ActionAdd:
		return "add a recommendation"
	case ActionRemove:
		return "remove a recommendation"
	case ActionMarkStaffPick:
		return "mark a staff pick"
	}
	return string(a)
}
