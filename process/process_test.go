package process

import (
	"bytes"
	"sync"
	"testing"

	"github.com/joeycumines/nachos-go/kthread"
	"github.com/joeycumines/nachos-go/machine"
	"github.com/joeycumines/nachos-go/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcessor is a minimal machine.Processor test double: a fixed
// register file and a shared byte slab standing in for physical memory.
type fakeProcessor struct {
	regs machine.Registers
	mem  []byte
	halt bool
}

func newFakeProcessor(numFrames int) *fakeProcessor {
	return &fakeProcessor{mem: make([]byte, numFrames*vm.PageSize)}
}

func (f *fakeProcessor) Registers() *machine.Registers { return &f.regs }
func (f *fakeProcessor) Memory() []byte                { return f.mem }
func (f *fakeProcessor) AdvancePC() {
	f.regs.PC, f.regs.NextPC = f.regs.NextPC, f.regs.NextPC+4
}
func (f *fakeProcessor) Halt() { f.halt = true }

// fakeLoader is a one-section, code-only executable: Section 0 covers
// numPages pages starting at VPN 0, backed by an all-zero page image.
type fakeLoader struct {
	entry    uint32
	numPages int
}

func (l *fakeLoader) EntryPoint() uint32 { return l.entry }
func (l *fakeLoader) NumSections() int   { return 1 }
func (l *fakeLoader) Section(int) machine.SectionInfo {
	return machine.SectionInfo{FirstVPN: 0, Length: l.numPages, ReadOnly: false}
}
func (l *fakeLoader) LoadPage(sectionPageIndex int, frame int) error { return nil }

type fakeFile struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	data []byte
	pos  int
}

func (f *fakeFile) Read(buf []byte, off, length int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := copy(buf[off:off+length], f.data[f.pos:])
	f.pos += n
	return n, nil
}

func (f *fakeFile) Write(buf []byte, off, length int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.buf.Write(buf[off : off+length])
	f.data = f.buf.Bytes()
	return n, err
}

func (f *fakeFile) Close() error { return nil }

type fakeFS struct {
	mu    sync.Mutex
	files map[string]*fakeFile
}

func newFakeFS() *fakeFS { return &fakeFS{files: make(map[string]*fakeFile)} }

func (fs *fakeFS) Open(name string, createIfMissing bool) (machine.File, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[name]
	if !ok {
		if !createIfMissing {
			return nil, false
		}
		f = &fakeFile{}
		fs.files[name] = f
	}
	f.pos = 0
	return f, true
}

func (fs *fakeFS) Remove(name string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.files[name]; !ok {
		return false
	}
	delete(fs.files, name)
	return true
}

type fakeConsole struct{ in, out *fakeFile }

func newFakeConsole() *fakeConsole          { return &fakeConsole{in: &fakeFile{}, out: &fakeFile{}} }
func (c *fakeConsole) Stdin() machine.File  { return c.in }
func (c *fakeConsole) Stdout() machine.File { return c.out }

// testRegistry is a trivial pid map, mirroring the kernel's eventual
// implementation closely enough to exercise Process without it.
type testRegistry struct {
	mu     sync.Mutex
	procs  map[int]*Process
	nextID int
}

func newTestRegistry() *testRegistry { return &testRegistry{procs: make(map[int]*Process)} }

func (r *testRegistry) Register(p *Process) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.procs[id] = p
	return id
}

func (r *testRegistry) Lookup(pid int) (*Process, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.procs[pid]
	return p, ok
}

func (r *testRegistry) Unregister(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, pid)
}

func (r *testRegistry) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// TestExecJoinExitFileRoundTrip is the full parent/child lifecycle: the
// parent execs a child whose body writes a 128-byte file through the
// syscall surface and exits(0); the parent joins, observes a normal
// exit, verifies the file contents and finally unlinks it.
func TestExecJoinExitFileRoundTrip(t *testing.T) {
	sched := kthread.New(kthread.Priority, nil)
	registry := newTestRegistry()
	proc := newFakeProcessor(16)
	fs := newFakeFS()
	console := newFakeConsole()
	pool := vm.NewFramePool(sched, 16)

	data := bytes.Repeat([]byte{0x7a}, 128)
	programs := func(name string) (Program, bool) {
		if name != "child" {
			return Program{}, false
		}
		return Program{
			Loader: &fakeLoader{entry: 0, numPages: 1},
			Run: func(cp *Process) {
				regs := cp.proc.Registers()

				fnameAddr := 64
				cp.tr.WriteVirtualMemory(fnameAddr, append([]byte("out.txt"), 0), 0, 8)
				regs.A0 = uint32(fnameAddr)
				regs.V0 = uint32(SyscallCreate)
				cp.HandleSyscall()
				fd := int32(regs.V0)
				assert.GreaterOrEqual(t, fd, int32(0))

				bufAddr := 256
				cp.tr.WriteVirtualMemory(bufAddr, data, 0, len(data))
				regs.A0, regs.A1, regs.A2 = uint32(fd), uint32(bufAddr), uint32(len(data))
				regs.V0 = uint32(SyscallWrite)
				cp.HandleSyscall()
				assert.Equal(t, int32(len(data)), int32(regs.V0))

				regs.A0 = uint32(fd)
				regs.V0 = uint32(SyscallClose)
				cp.HandleSyscall()

				regs.A0 = 0
				regs.V0 = uint32(SyscallExit)
				cp.HandleSyscall()
			},
		}, true
	}

	root := New(sched, registry, proc, fs, console, pool, programs)
	sched.NewRoot("root")
	require.True(t, root.Execute(&fakeLoader{entry: 0, numPages: 1}, "root", nil, func(*Process) {}))

	joinDone := make(chan int32, 1)
	sched.Fork("parent-body", func() {
		regs := root.proc.Registers()

		nameAddr := uint32(0)
		root.tr.WriteVirtualMemory(int(nameAddr), append([]byte("child"), 0), 0, 6)
		regs.A0, regs.A1, regs.A2 = nameAddr, 0, 0
		regs.V0 = uint32(SyscallExec)
		root.HandleSyscall()
		childPID := int32(regs.V0)
		assert.GreaterOrEqual(t, childPID, int32(0))

		// join blocks this thread; the child's body runs, writes the
		// file, and exits before join returns.
		statusAddr := 512
		regs.A0, regs.A1 = uint32(childPID), uint32(statusAddr)
		regs.V0 = uint32(SyscallJoin)
		root.HandleSyscall()
		joinDone <- int32(regs.V0)
	})

	for i := 0; i < 20; i++ {
		sched.Yield()
	}

	joinResult := <-joinDone
	assert.Equal(t, int32(1), joinResult, "join must report 1 for a child that exited normally")

	var statusBuf [4]byte
	require.Equal(t, 4, root.tr.ReadVirtualMemory(512, statusBuf[:], 0, 4))
	assert.Equal(t, [4]byte{}, statusBuf, "the child's exit status written for join must be 0")

	f, ok := fs.files["out.txt"]
	require.True(t, ok)
	assert.Equal(t, data, f.data)

	nameAddr := 320
	root.tr.WriteVirtualMemory(nameAddr, append([]byte("out.txt"), 0), 0, 8)
	regs := root.proc.Registers()
	regs.A0 = uint32(nameAddr)
	regs.V0 = uint32(SyscallUnlink)
	root.HandleSyscall()
	assert.Equal(t, int32(0), int32(regs.V0))
	_, stillThere := fs.files["out.txt"]
	assert.False(t, stillThere)
}

func TestExecUnknownProgramFails(t *testing.T) {
	sched := kthread.New(kthread.Priority, nil)
	registry := newTestRegistry()
	proc := newFakeProcessor(4)
	pool := vm.NewFramePool(sched, 4)

	programs := func(string) (Program, bool) { return Program{}, false }
	p := New(sched, registry, proc, newFakeFS(), newFakeConsole(), pool, programs)
	sched.NewRoot("root")
	require.True(t, p.Execute(&fakeLoader{entry: 0, numPages: 1}, "root", nil, nil))

	regs := proc.Registers()
	nameAddr := uint32(0)
	p.tr.WriteVirtualMemory(int(nameAddr), append([]byte("nope"), 0), 0, 5)
	regs.A0, regs.A1, regs.A2 = nameAddr, 0, 0
	regs.V0 = uint32(SyscallExec)
	p.HandleSyscall()
	assert.Equal(t, int32(-1), int32(regs.V0))
}

func TestJoinRejectsNonChild(t *testing.T) {
	sched := kthread.New(kthread.Priority, nil)
	registry := newTestRegistry()
	proc := newFakeProcessor(4)
	pool := vm.NewFramePool(sched, 4)

	p := New(sched, registry, proc, newFakeFS(), newFakeConsole(), pool, nil)
	sched.NewRoot("root")
	require.True(t, p.Execute(&fakeLoader{entry: 0, numPages: 1}, "root", nil, nil))

	regs := proc.Registers()
	regs.A0, regs.A1 = 42, 0
	regs.V0 = uint32(SyscallJoin)
	p.HandleSyscall()
	assert.Equal(t, int32(-1), int32(regs.V0), "join on a pid that is not a direct child must fail")
}

func TestReadWriteBadFDFails(t *testing.T) {
	sched := kthread.New(kthread.Priority, nil)
	registry := newTestRegistry()
	proc := newFakeProcessor(4)
	pool := vm.NewFramePool(sched, 4)

	p := New(sched, registry, proc, newFakeFS(), newFakeConsole(), pool, nil)
	sched.NewRoot("root")
	require.True(t, p.Execute(&fakeLoader{entry: 0, numPages: 1}, "root", nil, nil))

	regs := proc.Registers()
	regs.A0, regs.A1, regs.A2 = 9, 0, 16
	regs.V0 = uint32(SyscallRead)
	p.HandleSyscall()
	assert.Equal(t, int32(-1), int32(regs.V0))

	regs.A0, regs.A1, regs.A2 = 9, 0, 16
	regs.V0 = uint32(SyscallWrite)
	p.HandleSyscall()
	assert.Equal(t, int32(-1), int32(regs.V0))
}

func TestConsolePreinstalledAsFD0And1(t *testing.T) {
	sched := kthread.New(kthread.Priority, nil)
	registry := newTestRegistry()
	proc := newFakeProcessor(4)
	console := newFakeConsole()
	console.in.data = []byte("hi")
	pool := vm.NewFramePool(sched, 4)

	p := New(sched, registry, proc, newFakeFS(), console, pool, nil)
	sched.NewRoot("root")
	require.True(t, p.Execute(&fakeLoader{entry: 0, numPages: 1}, "root", nil, nil))

	regs := proc.Registers()
	bufAddr := 128
	regs.A0, regs.A1, regs.A2 = 0, uint32(bufAddr), 2
	regs.V0 = uint32(SyscallRead)
	p.HandleSyscall()
	require.Equal(t, int32(2), int32(regs.V0))
	got := make([]byte, 2)
	p.tr.ReadVirtualMemory(bufAddr, got, 0, 2)
	assert.Equal(t, []byte("hi"), got)

	p.tr.WriteVirtualMemory(bufAddr, []byte("ok"), 0, 2)
	regs.A0, regs.A1, regs.A2 = 1, uint32(bufAddr), 2
	regs.V0 = uint32(SyscallWrite)
	p.HandleSyscall()
	require.Equal(t, int32(2), int32(regs.V0))
	assert.Equal(t, []byte("ok"), console.out.data)
}

func TestCreateOpenUnlinkRoundTrip(t *testing.T) {
	sched := kthread.New(kthread.Priority, nil)
	registry := newTestRegistry()
	proc := newFakeProcessor(4)
	fs := newFakeFS()
	console := newFakeConsole()
	pool := vm.NewFramePool(sched, 4)

	p := New(sched, registry, proc, fs, console, pool, nil)
	sched.NewRoot("root")
	require.True(t, p.Execute(&fakeLoader{entry: 0, numPages: 1}, "root", nil, func(*Process) {}))

	regs := p.proc.Registers()
	nameAddr := uint32(0)
	p.tr.WriteVirtualMemory(int(nameAddr), append([]byte("f.txt"), 0), 0, 6)

	regs.A0 = nameAddr
	regs.V0 = uint32(SyscallOpen)
	p.HandleSyscall()
	assert.Equal(t, int32(-1), int32(regs.V0), "open of a nonexistent file must fail")

	regs.A0 = nameAddr
	regs.V0 = uint32(SyscallCreate)
	p.HandleSyscall()
	fd := int32(regs.V0)
	require.GreaterOrEqual(t, fd, int32(0))

	regs.A0 = uint32(fd)
	regs.V0 = uint32(SyscallClose)
	p.HandleSyscall()
	assert.Equal(t, int32(0), int32(regs.V0))

	regs.A0 = nameAddr
	regs.V0 = uint32(SyscallOpen)
	p.HandleSyscall()
	assert.GreaterOrEqual(t, int32(regs.V0), int32(0), "open must now succeed")

	regs.A0 = nameAddr
	regs.V0 = uint32(SyscallUnlink)
	p.HandleSyscall()
	assert.Equal(t, int32(0), int32(regs.V0))

	regs.A0 = nameAddr
	regs.V0 = uint32(SyscallUnlink)
	p.HandleSyscall()
	assert.Equal(t, int32(-1), int32(regs.V0), "unlinking twice must fail the second time")
}

func TestHaltOnlyPermittedForRootPID(t *testing.T) {
	sched := kthread.New(kthread.Priority, nil)
	registry := newTestRegistry()
	proc := newFakeProcessor(2)
	fs := newFakeFS()
	console := newFakeConsole()
	pool := vm.NewFramePool(sched, 2)

	root := New(sched, registry, proc, fs, console, pool, nil)
	sched.NewRoot("root")
	require.True(t, root.Execute(&fakeLoader{entry: 0, numPages: 1}, "root", nil, func(*Process) {}))
	require.Equal(t, 0, root.PID)

	regs := root.proc.Registers()
	regs.V0 = uint32(SyscallHalt)
	root.HandleSyscall()
	assert.Equal(t, int32(0), int32(regs.V0))
	assert.True(t, proc.halt)
}
