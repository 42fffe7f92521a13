// Package simmachine is the in-memory reference implementation of the
// machine interfaces: a register file over a flat byte memory, an
// interrupt level flag, a tick counter with an interrupt handler hook,
// and an exception vector. It exists so the kernel core can be booted
// and tested end-to-end without a real processor simulation; instruction
// interpretation stays out of scope.
package simmachine

import (
	"sync"

	"github.com/joeycumines/nachos-go/machine"
	"github.com/joeycumines/nachos-go/vm"
)

var (
	// compile time assertions

	_ machine.Processor           = (*Machine)(nil)
	_ machine.InterruptController = (*Machine)(nil)
	_ machine.Timer               = (*Machine)(nil)
	_ machine.ExceptionVector     = (*Machine)(nil)
)

// Machine implements machine.Processor, machine.InterruptController,
// machine.Timer and machine.ExceptionVector over in-process state.
type Machine struct {
	regs machine.Registers
	mem  []byte

	mu      sync.Mutex
	enabled bool
	ticks   uint64
	timerFn func()
	excFn   func(cause int)
	halted  bool
}

// New creates a machine with numFrames physical frames of memory and
// interrupts enabled.
func New(numFrames int) *Machine {
	return &Machine{
		mem:     make([]byte, numFrames*vm.PageSize),
		enabled: true,
	}
}

// NumFrames returns the number of physical frames backing this machine.
func (m *Machine) NumFrames() int { return len(m.mem) / vm.PageSize }

// Registers returns the current thread's register file.
func (m *Machine) Registers() *machine.Registers { return &m.regs }

// Memory returns the raw physical byte memory.
func (m *Machine) Memory() []byte { return m.mem }

// AdvancePC moves PC to NextPC and steps NextPC to the following
// instruction slot.
func (m *Machine) AdvancePC() {
	m.regs.PC, m.regs.NextPC = m.regs.NextPC, m.regs.NextPC+4
}

// Halt stops the machine. Further Advance calls are no-ops.
func (m *Machine) Halt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.halted = true
}

// Halted reports whether Halt has been called.
func (m *Machine) Halted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.halted
}

// Disable disables interrupts, returning whether they were previously
// enabled.
func (m *Machine) Disable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.enabled
	m.enabled = false
	return old
}

// SetLevel sets the interrupt level and returns the previous level.
func (m *Machine) SetLevel(enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.enabled
	m.enabled = enabled
	return old
}

// Enabled reports the current interrupt level.
func (m *Machine) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Ticks returns the current simulated tick count.
func (m *Machine) Ticks() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticks
}

// SetInterruptHandler installs the function invoked on every tick
// advance.
func (m *Machine) SetInterruptHandler(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timerFn = fn
}

// Advance moves the clock forward n ticks, invoking the installed timer
// interrupt handler once per tick while interrupts are enabled. A halted
// machine's clock no longer advances.
func (m *Machine) Advance(n uint64) {
	for i := uint64(0); i < n; i++ {
		m.mu.Lock()
		if m.halted {
			m.mu.Unlock()
			return
		}
		m.ticks++
		fn := m.timerFn
		fire := m.enabled && fn != nil
		m.mu.Unlock()
		if fire {
			fn()
		}
	}
}

// SetExceptionHandler installs the kernel's trap dispatcher.
func (m *Machine) SetExceptionHandler(fn func(cause int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.excFn = fn
}

// RaiseException records cause in the register file and invokes the
// installed handler. Raising with no handler installed is fatal: traps
// have nowhere to go before the kernel has booted.
func (m *Machine) RaiseException(cause int) {
	m.mu.Lock()
	fn := m.excFn
	m.mu.Unlock()
	if fn == nil {
		panic("simmachine: exception raised with no handler installed")
	}
	m.regs.Cause = cause
	fn(cause)
}

// RaisePageFault records badVAddr and raises a page-fault exception.
func (m *Machine) RaisePageFault(badVAddr uint32) {
	m.regs.BadVAddr = badVAddr
	m.RaiseException(machine.ExceptionPageFault)
}
