// Package machine defines the narrow boundary between the kernel core and
// its external collaborators: the simulated processor and byte memory, the
// executable loader, the console device, the underlying file system and the
// interrupt enable/disable primitive. The core never reaches past these
// interfaces; concrete implementations (simmachine, hostfs) live outside
// this package.
package machine

// Registers mirrors the integer register file of the simulated processor:
// PC/NextPC, the syscall-argument registers A0-A3, the return-value
// register V0, the stack pointer, the faulting address and the exception
// cause.
type Registers struct {
	PC, NextPC                 uint32
	V0                         uint32
	A0, A1, A2, A3             uint32
	SP                         uint32
	BadVAddr                   uint32
	Cause                      int
}

// Exception codes, passed to the installed exception handler and, for
// fatal exceptions, used verbatim as a process's exit status.
const (
	ExceptionSyscall = iota
	ExceptionPageFault
	ExceptionTLBMiss
	ExceptionReadOnly
	ExceptionBusError
	ExceptionAddressError
	ExceptionOverflow
	ExceptionIllegalInstruction
)

// Processor is the simulated MIPS-like CPU the kernel core drives.
// Context switching (saving/restoring a thread's Registers) is the raw,
// out-of-scope primitive; Processor only exposes the current thread's
// register file and a byte-addressable physical memory.
type Processor interface {
	// Registers returns the current thread's register file.
	Registers() *Registers
	// Memory returns the raw physical byte memory, indexed by physical
	// address. Bounds checking is the caller's responsibility.
	Memory() []byte
	// AdvancePC moves PC to NextPC and increments NextPC, the standard
	// post-instruction sequencing step; used after a syscall has been
	// serviced.
	AdvancePC()
	// Halt stops the simulated machine entirely.
	Halt()
}

// ExceptionVector is the processor-side hook the kernel installs its trap
// dispatcher on: every raised exception (syscall trap, page fault, fatal
// fault) invokes the installed handler with the cause code, with BadVAddr
// already recorded in the register file where relevant.
type ExceptionVector interface {
	SetExceptionHandler(func(cause int))
}

// Timer is the timer-interrupt source driving the alarm service and
// cooperative preemption.
type Timer interface {
	// Ticks returns the current simulated tick count.
	Ticks() uint64
	// SetInterruptHandler installs the function invoked on every timer
	// tick (a hardware timer fires roughly every 500 ticks; the handler
	// itself decides how often to act).
	SetInterruptHandler(func())
}

// InterruptController is the raw, external interrupt enable/disable
// primitive. The core's intr package wraps this with scoped
// disable/restore semantics; InterruptController itself need only
// provide an atomic level flag.
type InterruptController interface {
	// Disable disables interrupts and returns whether they were
	// previously enabled.
	Disable() bool
	// SetLevel sets the interrupt level and returns the previous level.
	SetLevel(enabled bool) bool
	// Enabled reports the current interrupt level.
	Enabled() bool
}

// SectionInfo describes one loadable section of an executable, per the
// object-code format: sections are contiguous and start at VPN 0, or
// the load fails.
type SectionInfo struct {
	FirstVPN int
	Length   int
	ReadOnly bool
}

// Loader exposes the executable-loading surface the address translator
// drives to populate newly allocated frames.
type Loader interface {
	EntryPoint() uint32
	NumSections() int
	Section(i int) SectionInfo
	// LoadPage copies the page at sectionPageIndex (a page index across
	// the concatenation of all sections, in order) into frame.
	LoadPage(sectionPageIndex int, frame int) error
}

// File is an open file or console stream.
type File interface {
	Read(buf []byte, off, length int) (int, error)
	Write(buf []byte, off, length int) (int, error)
	Close() error
}

// FileSystem is the underlying file system the core consumes. It does not
// interpret path syntax.
type FileSystem interface {
	// Open opens name, creating it first if createIfMissing is set and it
	// does not exist. Returns nil, false on failure.
	Open(name string, createIfMissing bool) (File, bool)
	// Remove deletes name, returning whether it existed and was removed.
	Remove(name string) bool
}

// Console exposes the two opaque files mounted as fd 0 and fd 1 on every
// process's startup.
type Console interface {
	Stdin() File
	Stdout() File
}
