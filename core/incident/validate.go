package incident

import (
	"fmt"
	"math"
	"strings"

	"coldwatch/core/rbac"
)

// ValidateOperationUpdate applies the preconditions of an operation update:
// op in 1..3, the caller holds the matching edit capability, and the comment
// is non-empty after trimming. It performs no side effects, so a failure
// guarantees no partial state change and no network write.
func ValidateOperationUpdate(op int, comment string, perms rbac.PermissionSet) error {
	allowed, err := perms.CanEditOperation(op)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: role %s cannot edit op%d", ErrPermissionDenied, perms.UserRole, op)
	}
	if strings.TrimSpace(comment) == "" {
		return fmt.Errorf("%w: op%d comment must not be empty", ErrValidation, op)
	}
	return nil
}

// ValidateManualReading checks a manual temperature/humidity entry before it
// leaves the caller. Humidity is a percentage.
func ValidateManualReading(temperature, humidity float64) error {
	if math.IsNaN(temperature) || math.IsInf(temperature, 0) || math.IsNaN(humidity) || math.IsInf(humidity, 0) {
		return fmt.Errorf("%w: reading values must be finite numbers", ErrValidation)
	}
	if humidity < 0 || humidity > 100 {
		return fmt.Errorf("%w: humidity %.1f outside [0,100]", ErrValidation, humidity)
	}
	if temperature < -273.15 || temperature > 1000 {
		return fmt.Errorf("%w: temperature %.1f implausible", ErrValidation, temperature)
	}
	return nil
}
