package kernel

import (
	"sync"

	"github.com/joeycumines/nachos-go/kthread"
	"github.com/joeycumines/nachos-go/process"
)

var _ process.Registry = (*Registry)(nil)

// Registry is the kernel-wide pid map: monotonic pid assignment with pid
// 0 reserved for the root process, guarded by its own lock rather than
// the scheduler's interrupt gate, since it is touched by whichever
// process thread happens to be running.
type Registry struct {
	mu    sync.Mutex
	procs map[int]*process.Process
	next  int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[int]*process.Process)}
}

// Register assigns p the next pid and records it.
func (r *Registry) Register(p *process.Process) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	pid := r.next
	r.next++
	r.procs[pid] = p
	return pid
}

// Lookup returns the live process with the given pid.
func (r *Registry) Lookup(pid int) (*process.Process, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.procs[pid]
	return p, ok
}

// Unregister drops pid from the map. Dropping an already-removed pid is
// a no-op, keeping exit cleanup idempotent.
func (r *Registry) Unregister(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, pid)
}

// Remaining returns the number of live processes.
func (r *Registry) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// LookupByThread resolves the process whose thread is t, as the trap
// dispatcher must for the currently running thread. Linear in the number
// of live processes.
func (r *Registry) LookupByThread(t *kthread.Thread) (*process.Process, bool) {
	if t == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.procs {
		if p.Thread() == t {
			return p, true
		}
	}
	return nil, false
}
