package incident

import (
	"errors"
	"math"
	"testing"

	"coldwatch/core/rbac"
)

func TestValidateOperationUpdate(t *testing.T) {
	op2 := rbac.PermissionsForRole(rbac.RoleOperator2)

	if err := ValidateOperationUpdate(2, "pompe redémarrée", op2); err != nil {
		t.Fatalf("allowed update rejected: %v", err)
	}
	if err := ValidateOperationUpdate(1, "intrusion", op2); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied for op1, got %v", err)
	}
	if err := ValidateOperationUpdate(2, "   ", op2); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for blank comment, got %v", err)
	}
	if err := ValidateOperationUpdate(5, "x", op2); !errors.Is(err, rbac.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for op 5, got %v", err)
	}
}

func TestValidateOperationUpdateVisitor(t *testing.T) {
	visitor := rbac.PermissionsForRole(rbac.RoleVisitor)
	for op := 1; op <= OperationCount; op++ {
		if err := ValidateOperationUpdate(op, "tentative", visitor); !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("visitor op%d: expected permission denied, got %v", op, err)
		}
	}
}

func TestValidateOperationUpdateAdmin(t *testing.T) {
	admin := rbac.PermissionsForRole(rbac.RoleAdmin)
	for op := 1; op <= OperationCount; op++ {
		if err := ValidateOperationUpdate(op, "fait", admin); err != nil {
			t.Fatalf("admin op%d rejected: %v", op, err)
		}
	}
}

func TestValidateManualReading(t *testing.T) {
	if err := ValidateManualReading(5.5, 60); err != nil {
		t.Fatalf("valid reading rejected: %v", err)
	}
	if err := ValidateManualReading(5.5, 0); err != nil {
		t.Fatalf("humidity 0 rejected: %v", err)
	}
	if err := ValidateManualReading(5.5, 100); err != nil {
		t.Fatalf("humidity 100 rejected: %v", err)
	}
	if err := ValidateManualReading(5.5, -0.1); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error below 0, got %v", err)
	}
	if err := ValidateManualReading(5.5, 100.1); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error above 100, got %v", err)
	}
	if err := ValidateManualReading(math.NaN(), 50); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for NaN, got %v", err)
	}
	if err := ValidateManualReading(-300, 50); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error below absolute zero, got %v", err)
	}
}
