package incident

// Counter thresholds unlocking the corrective operations. Each stage becomes
// visible only once the incident has aged past its threshold, so an operator
// cannot acknowledge a later step before the earlier ones are due.
const (
	Op1VisibleAt = 1
	Op2VisibleAt = 4
	Op3VisibleAt = 7

	OperationCount = 3
)

// OperationVisible reports whether corrective operation op (1..3) is shown
// for the given incident counter. Out-of-range operations are never visible.
func OperationVisible(counter, op int) bool {
	switch op {
	case 1:
		return counter >= Op1VisibleAt
	case 2:
		return counter >= Op2VisibleAt
	case 3:
		return counter >= Op3VisibleAt
	default:
		return false
	}
}

// VisibleOperations returns the visibility flags for op1..op3 at the given
// counter. Derived on every snapshot refresh, never persisted.
func VisibleOperations(counter int) [OperationCount]bool {
	return [OperationCount]bool{
		OperationVisible(counter, 1),
		OperationVisible(counter, 2),
		OperationVisible(counter, 3),
	}
}
