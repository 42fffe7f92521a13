package kthread

import (
	"fmt"
	"sync/atomic"
)

// State is one of the five states a thread moves through.
type State int32

const (
	New State = iota
	Ready
	Running
	Blocked
	Finished
)

func (s State) String() string {
	switch s {
	case New:
		return "NEW"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Finished:
		return "FINISHED"
	default:
		return fmt.Sprintf("STATE(%d)", s)
	}
}

// Thread is a kernel thread. Its scheduling fields (p, e, held,
// waitingOn) are mutated exclusively by code running with interrupts
// disabled; see intr.Gate and Scheduler.
type Thread struct {
	ID   uint64
	Name string

	sched *Scheduler

	state atomic.Int32 // State, read without the gate for diagnostics

	// own/effective priority or ticket count, depending on the installed
	// Policy. Mutated only with interrupts disabled.
	p, e int64

	// held is the set of wait queues this thread currently holds as
	// resource holder; waitingOn is the single queue it is blocked on,
	// if any. Both mutated only with interrupts disabled.
	held      map[*WaitQueue]struct{}
	waitingOn *WaitQueue

	// joinQueue is this thread's own completion queue: a transferring
	// WaitQueue this thread acquires for its own lifetime, so that
	// Join callers donate priority to it while waiting.
	joinQueue *WaitQueue

	// runCh is the dispatch gate: the scheduler sends on it to resume
	// this thread's goroutine, and the goroutine parks by receiving
	// from it. Buffered (depth 1) so a resume never blocks the
	// dispatcher.
	runCh chan struct{}

	status    int32
	hasStatus bool
}

// State returns the thread's current state.
func (t *Thread) State() State { return State(t.state.Load()) }

func (t *Thread) setState(s State) { t.state.Store(int32(s)) }

// Status returns the exit/finish status recorded by Finish, if any.
func (t *Thread) Status() (int32, bool) { return t.status, t.hasStatus }

// Priority returns the thread's own (non-donated) priority or ticket
// value.
func (t *Thread) Priority() int64 { return t.p }

// EffectivePriority returns the thread's current donation-adjusted
// priority or ticket value.
func (t *Thread) EffectivePriority() int64 { return t.e }

// Scheduler returns the scheduler that owns this thread.
func (t *Thread) Scheduler() *Scheduler { return t.sched }

func (t *Thread) String() string {
	return fmt.Sprintf("Thread(%d:%s)", t.ID, t.Name)
}
