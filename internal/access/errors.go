package access

import "errors"

var (
	// ErrCycleRejected indicates that inserting a hierarchy edge would
	// close a cycle. The write must be blocked.
	ErrCycleRejected = errors.New("access: hierarchy edge would create a cycle")

	// ErrHierarchyCorrupted indicates that a cycle was found in stored
	// hierarchy data during traversal. Traversal still terminates and
	// partial results are available; callers choose whether to degrade
	// or refuse to serve.
	ErrHierarchyCorrupted = errors.New("access: cycle detected in stored role hierarchy")
)
