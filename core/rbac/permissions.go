package rbac

import (
	"errors"
	"fmt"
)

const (
	RoleAdmin     = "admin"
	RoleOperator1 = "operateur1"
	RoleOperator2 = "operateur2"
	RoleOperator3 = "operateur3"
	RoleVisitor   = "visiteur"
)

var ErrInvalidArgument = errors.New("invalid argument")

// PermissionSet is the per-session capability snapshot served alongside every
// incident status poll. The server is the only authority; clients carry it
// verbatim and never derive capabilities locally.
type PermissionSet struct {
	UserRole              string `json:"user_role"`
	CanEditOp1            bool   `json:"can_edit_op1"`
	CanEditOp2            bool   `json:"can_edit_op2"`
	CanEditOp3            bool   `json:"can_edit_op3"`
	CanComment            bool   `json:"can_comment"`
	CanAcknowledgeReceipt bool   `json:"can_accuse_reception"`
}

// CanEditOperation reports whether the set grants editing of corrective
// operation op (1..3).
func (p PermissionSet) CanEditOperation(op int) (bool, error) {
	switch op {
	case 1:
		return p.CanEditOp1, nil
	case 2:
		return p.CanEditOp2, nil
	case 3:
		return p.CanEditOp3, nil
	default:
		return false, fmt.Errorf("%w: operation number %d", ErrInvalidArgument, op)
	}
}

// PermissionsForRole maps a role name onto its capability set. Unknown roles
// degrade to visitor.
func PermissionsForRole(role string) PermissionSet {
	ps := PermissionSet{UserRole: role}
	switch role {
	case RoleAdmin:
		ps.CanEditOp1, ps.CanEditOp2, ps.CanEditOp3 = true, true, true
	case RoleOperator1:
		ps.CanEditOp1 = true
	case RoleOperator2:
		ps.CanEditOp2 = true
	case RoleOperator3:
		ps.CanEditOp3 = true
	default:
		ps.UserRole = RoleVisitor
		return ps
	}
	ps.CanComment = true
	ps.CanAcknowledgeReceipt = true
	return ps
}
