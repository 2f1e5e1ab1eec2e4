package ir

import "fmt"

// InternalError is an invariant violation inside the backend: a CFG shape
// that a well-formed front end never produces reached a pass that has no
// case for it. Compilation aborts when one is raised.
type InternalError struct {
	Phase  string
	Detail string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %s", e.Phase, e.Detail)
}

// Bug panics with an *InternalError. The driver recovers it and reports the
// compilation as failed.
func Bug(phase string, format string, args ...any) {
	panic(&InternalError{Phase: phase, Detail: fmt.Sprintf(format, args...)})
}
