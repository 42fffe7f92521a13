// Package process implements the user-process execution environment:
// per-process address space setup, exit/cleanup, parent/child tracking,
// and the ten-call syscall interface.
package process

import (
	"sync"

	"github.com/joeycumines/nachos-go/klog"
	"github.com/joeycumines/nachos-go/kthread"
	"github.com/joeycumines/nachos-go/machine"
	"github.com/joeycumines/nachos-go/vm"
)

// Registry is the kernel-wide pid bookkeeping a Process needs: pid
// allocation, the pid->Process map, and machine shutdown once every
// process has exited. It is guarded by its own lock; concrete
// implementations live in package kernel.
type Registry interface {
	Register(p *Process) int
	Lookup(pid int) (*Process, bool)
	Unregister(pid int)
	Remaining() int
}

// Program bundles an executable's loader with the entry behavior its
// forked thread runs. Real instruction execution happens outside the
// kernel; Run stands in for "what the user program does", supplied by
// the ProgramFactory (cmd/nachos or a test) rather than interpreted from
// loaded code.
type Program struct {
	Loader machine.Loader
	Run    func(*Process)
}

// ProgramFactory resolves a program name to a Program, as exec needs to
// do for a name read out of the calling process's own address space.
type ProgramFactory func(name string) (Program, bool)

// Process is one user address space: its page table and the frames it
// owns, its open files, its children, and its exit status.
type Process struct {
	PID       int
	Parent    int
	hasParent bool

	sched    *kthread.Scheduler
	thread   *kthread.Thread
	registry Registry
	proc     machine.Processor
	fs       machine.FileSystem
	console  machine.Console
	programs ProgramFactory

	table *vm.PageTable
	pool  *vm.FramePool
	tr    *vm.Translator

	fds *fdTable

	mu       sync.Mutex
	children map[int]struct{}
	exited   bool
	status   int32
}

// New creates a process bound to the given machine collaborators, not
// yet loaded with an executable. programs resolves program names for
// exec; it may be nil for a process that never calls exec.
func New(sched *kthread.Scheduler, registry Registry, proc machine.Processor, fs machine.FileSystem, console machine.Console, pool *vm.FramePool, programs ProgramFactory) *Process {
	p := &Process{
		sched:    sched,
		registry: registry,
		proc:     proc,
		fs:       fs,
		console:  console,
		pool:     pool,
		programs: programs,
		fds:      newFDTable(console),
		children: make(map[int]struct{}),
	}
	p.PID = registry.Register(p)
	return p
}

// Execute loads the given executable's sections into freshly allocated
// frames, lays out argv in the final page, and forks the process's
// thread at the loader's entry point. Returns false on any load
// failure.
func (p *Process) Execute(loader machine.Loader, name string, args []string, runEntry func(*Process)) bool {
	numSections := loader.NumSections()
	if numSections == 0 {
		return false
	}

	maxVPN := -1
	for i := 0; i < numSections; i++ {
		sec := loader.Section(i)
		if i == 0 && sec.FirstVPN != 0 {
			return false // sections must start at VPN 0
		}
		end := sec.FirstVPN + sec.Length - 1
		if end > maxVPN {
			maxVPN = end
		}
	}

	// The table spans the whole physical page count: the argv page is
	// the last numbered page, and every page between the sections and
	// argv begins invalid, faulted in on first touch.
	numPages := len(p.proc.Memory()) / vm.PageSize
	if maxVPN+2 > numPages {
		return false
	}
	p.table = vm.NewPageTable(numPages)
	p.tr = vm.NewTranslator(p.table, p.pool, p.proc.Memory())

	pageIdx := 0
	for i := 0; i < numSections; i++ {
		sec := loader.Section(i)
		for j := 0; j < sec.Length; j++ {
			vpn := sec.FirstVPN + j
			frame := p.pool.Allocate()
			if err := loader.LoadPage(pageIdx, frame); err != nil {
				p.pool.Return(frame)
				p.pool.ReturnAll(p.table.Frames())
				return false
			}
			p.table.SetEntry(vm.PageTableEntry{VPN: vpn, Frame: frame, Valid: true, ReadOnly: sec.ReadOnly})
			pageIdx++
		}
	}

	argvPage := numPages - 1
	argvFrame := p.pool.Allocate()
	p.table.SetEntry(vm.PageTableEntry{VPN: argvPage, Frame: argvFrame, Valid: true})
	p.writeArgv(argvPage, args)

	regs := p.proc.Registers()
	*regs = machine.Registers{PC: loader.EntryPoint(), NextPC: loader.EntryPoint() + 4}

	klog.Info().Int("pid", p.PID).Str("name", name).Log("process started")

	if runEntry == nil {
		runEntry = func(*Process) {}
	}
	p.thread = p.sched.Fork(name, func() {
		runEntry(p)
	})
	return true
}

// writeArgv lays out argc little-endian pointers followed by
// NUL-terminated argument bytes at offset 0 of the given page.
func (p *Process) writeArgv(page int, args []string) {
	base := page * vm.PageSize
	ptrBytes := 4 * len(args)
	cursor := base + ptrBytes
	for i, a := range args {
		strAddr := uint32(cursor)
		le := []byte{byte(strAddr), byte(strAddr >> 8), byte(strAddr >> 16), byte(strAddr >> 24)}
		p.tr.WriteVirtualMemory(base+4*i, le, 0, 4)
		data := append([]byte(a), 0)
		p.tr.WriteVirtualMemory(cursor, data, 0, len(data))
		cursor += len(data)
	}
}

// PageFault services a page fault raised for vaddr and rewinds PC so the
// faulting instruction retries once the page is resident.
func (p *Process) PageFault(vaddr int) {
	p.tr.HandlePageFault(vaddr)
	vm.RewindPC(p.proc.Registers())
}

// Translator exposes the process's address translator for syscall
// argument marshalling.
func (p *Process) Translator() *vm.Translator { return p.tr }

// AddChild records pid as a direct child of p.
func (p *Process) AddChild(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.children[pid] = struct{}{}
}

// IsChild reports whether pid is a direct child of p.
func (p *Process) IsChild(pid int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.children[pid]
	return ok
}

// Thread returns the kernel thread running this process.
func (p *Process) Thread() *kthread.Thread { return p.thread }

// Exit performs idempotent cleanup (closing fds, returning frames,
// waking frame-starved peers, removing the process from the pid map)
// then records status and finishes the process's thread. If no process
// remains, the machine halts.
func (p *Process) Exit(status int32) {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return
	}
	p.exited = true
	p.status = status
	p.mu.Unlock()

	p.fds.closeAll()
	if p.table != nil {
		p.pool.ReturnAll(p.table.Frames())
	}
	p.registry.Unregister(p.PID)

	klog.Info().Int("pid", p.PID).Int("status", int(status)).Log("process exited")

	if p.registry.Remaining() == 0 {
		p.proc.Halt()
	}
	p.sched.Finish(&status)
}

// Status returns the exit status recorded by Exit, and whether the
// process has in fact exited.
func (p *Process) Status() (int32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, p.exited
}
