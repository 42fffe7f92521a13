// Package intr provides the scoped interrupt disable/restore gate every
// scheduler-touching operation in the kernel core runs under. The raw
// enable/disable primitive is external (machine.
// InterruptController); this package only adds the scoping discipline.
package intr

import "github.com/joeycumines/nachos-go/machine"

// Gate wraps a machine.InterruptController with nesting-safe scoped
// disable/restore, mirroring the disable-then-defer-restore idiom used at
// every public entry point of the scheduler, alarm, condition and
// lock/sleep/ready/finish operations.
type Gate struct {
	ic machine.InterruptController
}

// New wraps ic. A nil ic yields a Gate with no real mutual exclusion,
// useful only for unit tests of pure data structures that never run
// concurrently.
func New(ic machine.InterruptController) *Gate {
	return &Gate{ic: ic}
}

// Disable disables interrupts, returning the previous level so the
// caller can later pass it to Restore. Safe to nest: disabling an
// already-disabled gate returns false and Restore(false) is a no-op.
func (g *Gate) Disable() bool {
	if g.ic == nil {
		return true
	}
	return g.ic.Disable()
}

// Restore restores the interrupt level captured by a prior Disable.
func (g *Gate) Restore(old bool) {
	if g.ic == nil {
		return
	}
	g.ic.SetLevel(old)
}

// Enabled reports the current interrupt level.
func (g *Gate) Enabled() bool {
	if g.ic == nil {
		return true
	}
	return g.ic.Enabled()
}

// Guard disables interrupts and returns a restore function, for the
// common `defer intr.Guard(g)()` pattern.
func Guard(g *Gate) func() {
	old := g.Disable()
	return func() { g.Restore(old) }
}
