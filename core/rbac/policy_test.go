package rbac

import "testing"

func TestDefaultRolesMatrix(t *testing.T) {
	policy := NewPolicy(DefaultRoles())

	cases := []struct {
		role    string
		perm    Permission
		allowed bool
	}{
		{RoleAdmin, PermIncidentsEditOp1, true},
		{RoleAdmin, PermIncidentsEditOp3, true},
		{RoleAdmin, PermThresholdsManage, true},
		{RoleOperator1, PermIncidentsEditOp1, true},
		{RoleOperator1, PermIncidentsEditOp2, false},
		{RoleOperator2, PermIncidentsEditOp2, true},
		{RoleOperator2, PermIncidentsEditOp3, false},
		{RoleOperator3, PermIncidentsEditOp3, true},
		{RoleOperator3, PermIncidentsEditOp1, false},
		{RoleOperator1, PermIncidentsComment, true},
		{RoleOperator1, PermIncidentsAck, true},
		{RoleOperator1, PermThresholdsManage, false},
		{RoleVisitor, PermReadingsView, true},
		{RoleVisitor, PermIncidentsView, true},
		{RoleVisitor, PermIncidentsComment, false},
		{RoleVisitor, PermIncidentsAck, false},
		{RoleVisitor, PermReadingsManual, false},
	}
	for _, tc := range cases {
		if got := policy.Allowed([]string{tc.role}, tc.perm); got != tc.allowed {
			t.Errorf("%s %s: got %v want %v", tc.role, tc.perm, got, tc.allowed)
		}
	}
}

func TestPolicyUnknownRole(t *testing.T) {
	policy := NewPolicy(DefaultRoles())
	if policy.Allowed([]string{"ghost"}, PermReadingsView) {
		t.Fatal("unknown role must not be granted anything")
	}
	if policy.Allowed(nil, PermReadingsView) {
		t.Fatal("empty role list must not be granted anything")
	}
}

func TestPermissionsForRole(t *testing.T) {
	admin := PermissionsForRole(RoleAdmin)
	if !admin.CanEditOp1 || !admin.CanEditOp2 || !admin.CanEditOp3 || !admin.CanComment || !admin.CanAcknowledgeReceipt {
		t.Fatalf("admin capabilities incomplete: %+v", admin)
	}
	op2 := PermissionsForRole(RoleOperator2)
	if op2.CanEditOp1 || !op2.CanEditOp2 || op2.CanEditOp3 {
		t.Fatalf("operateur2 edit capabilities wrong: %+v", op2)
	}
	if !op2.CanComment || !op2.CanAcknowledgeReceipt {
		t.Fatalf("operateur2 should comment and acknowledge: %+v", op2)
	}
	visitor := PermissionsForRole(RoleVisitor)
	if visitor.CanEditOp1 || visitor.CanComment || visitor.CanAcknowledgeReceipt {
		t.Fatalf("visitor should have no write capability: %+v", visitor)
	}
	unknown := PermissionsForRole("intrus")
	if unknown.UserRole != RoleVisitor {
		t.Fatalf("unknown role should degrade to visitor, got %q", unknown.UserRole)
	}
}

func TestCanEditOperationRange(t *testing.T) {
	p := PermissionsForRole(RoleAdmin)
	if _, err := p.CanEditOperation(0); err == nil {
		t.Fatal("op 0 must be rejected")
	}
	if _, err := p.CanEditOperation(4); err == nil {
		t.Fatal("op 4 must be rejected")
	}
}
