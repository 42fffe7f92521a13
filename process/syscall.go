package process

import (
	"github.com/joeycumines/nachos-go/klog"
)

// Syscall numbers, as delivered in V0 by the trapping instruction.
const (
	SyscallHalt = iota
	SyscallExit
	SyscallExec
	SyscallJoin
	SyscallCreate
	SyscallOpen
	SyscallRead
	SyscallWrite
	SyscallClose
	SyscallUnlink
)

const (
	maxArgString = 256
	rootPID      = 0
)

// HandleSyscall dispatches a syscall trap on p's registers (A0-A3 as
// arguments, V0 as the return value) and advances PC past the syscall
// instruction.
func (p *Process) HandleSyscall() {
	regs := p.proc.Registers()
	var ret int32
	switch num := p.syscallNumber(); num {
	case SyscallHalt:
		ret = p.sysHalt()
	case SyscallExit:
		p.sysExit(int32(regs.A0))
		return // the thread is finished; touching shared registers past this point races the next thread
	case SyscallExec:
		ret = p.sysExec(regs.A0, regs.A1, regs.A2)
	case SyscallJoin:
		ret = p.sysJoin(int(int32(regs.A0)), regs.A1)
	case SyscallCreate:
		ret = p.sysCreate(regs.A0)
	case SyscallOpen:
		ret = p.sysOpen(regs.A0)
	case SyscallRead:
		ret = p.sysRead(int(int32(regs.A0)), regs.A1, int(int32(regs.A2)))
	case SyscallWrite:
		ret = p.sysWrite(int(int32(regs.A0)), regs.A1, int(int32(regs.A2)))
	case SyscallClose:
		ret = p.sysClose(int(int32(regs.A0)))
	case SyscallUnlink:
		ret = p.sysUnlink(regs.A0)
	default:
		ret = -1
	}
	regs.V0 = uint32(ret)
	p.proc.AdvancePC()
}

// syscallNumber reads the trap number out of V0, the convention the
// syscall dispatcher expects the trapping instruction to have set.
func (p *Process) syscallNumber() int { return int(int32(p.proc.Registers().V0)) }

func (p *Process) sysHalt() int32 {
	if p.PID != rootPID {
		return -1
	}
	p.proc.Halt()
	return 0
}

func (p *Process) sysExit(status int32) {
	p.Exit(status)
}

// sysExec reads a NUL-terminated program name and argc argument strings
// (each capped at 256 bytes) out of user memory, resolves the name
// through the loader factory, constructs a child process bound to it,
// and forks it. Returns the child pid, or −1 on any failure.
func (p *Process) sysExec(nameAddr, argc, argvAddr uint32) int32 {
	if p.programs == nil {
		return -1
	}
	name, ok := p.readCString(nameAddr)
	if !ok {
		return -1
	}
	prog, ok := p.programs(name)
	if !ok {
		return -1
	}

	args := make([]string, 0, argc)
	for i := uint32(0); i < argc; i++ {
		var ptrBuf [4]byte
		if n := p.tr.ReadVirtualMemory(int(argvAddr)+4*int(i), ptrBuf[:], 0, 4); n != 4 {
			return -1
		}
		strAddr := uint32(ptrBuf[0]) | uint32(ptrBuf[1])<<8 | uint32(ptrBuf[2])<<16 | uint32(ptrBuf[3])<<24
		arg, ok := p.readCString(strAddr)
		if !ok {
			return -1
		}
		args = append(args, arg)
	}

	child := New(p.sched, p.registry, p.proc, p.fs, p.console, p.pool, p.programs)
	if !child.Execute(prog.Loader, name, args, prog.Run) {
		p.registry.Unregister(child.PID)
		return -1
	}
	child.Parent = p.PID
	child.hasParent = true
	p.AddChild(child.PID)
	klog.Info().Int("pid", p.PID).Int("child", child.PID).Str("name", name).Log("exec")
	return int32(child.PID)
}

// readCString copies a NUL-terminated string out of user memory,
// capped at maxArgString bytes, failing if no terminator is found
// within that limit.
func (p *Process) readCString(addr uint32) (string, bool) {
	buf := make([]byte, maxArgString)
	n := p.tr.ReadVirtualMemory(int(addr), buf, 0, maxArgString)
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return string(buf[:i]), true
		}
	}
	return "", false
}

// sysJoin blocks until the direct child pid finishes, writes its exit
// status to statusAddr, and reports whether it exited normally.
func (p *Process) sysJoin(pid int, statusAddr uint32) int32 {
	if !p.IsChild(pid) {
		return -1
	}
	child, ok := p.registry.Lookup(pid)
	if !ok {
		return -1
	}
	status, _ := p.sched.Join(child.Thread())

	var buf [4]byte
	u := uint32(status)
	buf[0], buf[1], buf[2], buf[3] = byte(u), byte(u>>8), byte(u>>16), byte(u>>24)
	p.tr.WriteVirtualMemory(int(statusAddr), buf[:], 0, 4)

	if status == 0 {
		return 1
	}
	return 0
}

func (p *Process) sysCreate(nameAddr uint32) int32 {
	name, ok := p.readCString(nameAddr)
	if !ok {
		return -1
	}
	f, ok := p.fs.Open(name, true)
	if !ok {
		return -1
	}
	fd := p.fds.install(f)
	if fd < 0 {
		_ = f.Close()
		return -1
	}
	return int32(fd)
}

func (p *Process) sysOpen(nameAddr uint32) int32 {
	name, ok := p.readCString(nameAddr)
	if !ok {
		return -1
	}
	f, ok := p.fs.Open(name, false)
	if !ok {
		return -1
	}
	fd := p.fds.install(f)
	if fd < 0 {
		_ = f.Close()
		return -1
	}
	return int32(fd)
}

func (p *Process) sysRead(fd int, bufAddr uint32, size int) int32 {
	if size < 0 {
		return -1
	}
	f, ok := p.fds.get(fd)
	if !ok {
		return -1
	}
	buf := make([]byte, size)
	n, err := f.Read(buf, 0, size)
	if err != nil && n == 0 {
		return -1
	}
	if n > 0 {
		p.tr.WriteVirtualMemory(int(bufAddr), buf, 0, n)
	}
	return int32(n)
}

// sysWrite writes exactly size bytes: a partial write is treated as an
// error.
func (p *Process) sysWrite(fd int, bufAddr uint32, size int) int32 {
	if size < 0 {
		return -1
	}
	f, ok := p.fds.get(fd)
	if !ok {
		return -1
	}
	buf := make([]byte, size)
	got := p.tr.ReadVirtualMemory(int(bufAddr), buf, 0, size)
	if got != size {
		return -1
	}
	n, err := f.Write(buf, 0, size)
	if err != nil || n != size {
		return -1
	}
	return int32(size)
}

func (p *Process) sysClose(fd int) int32 {
	if !p.fds.closeFD(fd) {
		return -1
	}
	return 0
}

func (p *Process) sysUnlink(nameAddr uint32) int32 {
	name, ok := p.readCString(nameAddr)
	if !ok {
		return -1
	}
	if !p.fs.Remove(name) {
		return -1
	}
	return 0
}

// HandleException routes a fatal user exception (TLB miss, read-only
// violation, bus/address error, overflow, illegal instruction) through
// the normal exit path with the exception code as status. Page faults
// and syscalls are handled separately and must not reach this path.
func (p *Process) HandleException(cause int) {
	klog.Warn().Int("pid", p.PID).Int("cause", cause).Log("fatal exception")
	p.Exit(int32(cause))
}
