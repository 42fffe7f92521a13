package kthread

import "fmt"

// InvariantError models a kernel invariant violation: a scheduler
// precondition broken by the caller (acquiring a busy queue, waiting
// twice, setting an out-of-range priority). These are fatal to the
// kernel; callers are expected to let the panic propagate, not recover
// from it.
type InvariantError struct {
	Op  string
	Msg string
}

func (e *InvariantError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("kthread: invariant violated: %s", e.Msg)
	}
	return fmt.Sprintf("kthread: invariant violated in %s: %s", e.Op, e.Msg)
}

func fail(op, msg string) {
	panic(&InvariantError{Op: op, Msg: msg})
}
