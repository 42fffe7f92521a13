package kernel

import (
	"errors"
	"fmt"

	"github.com/joeycumines/nachos-go/alarm"
	"github.com/joeycumines/nachos-go/klog"
	"github.com/joeycumines/nachos-go/kthread"
	"github.com/joeycumines/nachos-go/machine"
	"github.com/joeycumines/nachos-go/process"
	"github.com/joeycumines/nachos-go/vm"
)

var (
	// ErrNoProgram indicates Config.Program was empty or could not be
	// resolved by the program factory.
	ErrNoProgram = errors.New("kernel: no root program")

	// ErrLoadFailed indicates the root executable failed to load.
	ErrLoadFailed = errors.New("kernel: root program failed to load")
)

// Kernel owns the booted system: scheduler, alarm, frame pool, pid
// registry and the trap dispatcher. The goroutine that calls New becomes
// the boot thread.
type Kernel struct {
	cfg      Config
	sched    *kthread.Scheduler
	alarm    *alarm.Alarm
	registry *Registry
	pool     *vm.FramePool
	root     *process.Process
}

// New builds a kernel from cfg, claims the calling goroutine as the boot
// thread, and installs the trap dispatcher on cfg.Exceptions and the
// preemption hook on cfg.Timer. The timer's interrupt handler must be
// invoked from the running thread's context: the single-processor model
// has the ISR borrow the current thread, and the yield it requests is
// taken on that thread's behalf.
func New(cfg Config) *Kernel {
	k := &Kernel{
		cfg:      cfg,
		sched:    kthread.New(cfg.Policy, cfg.Interrupts),
		registry: NewRegistry(),
	}
	k.alarm = alarm.New(k.sched)

	numFrames := cfg.NumFrames
	if numFrames <= 0 {
		numFrames = defaultNumFrames
		if cfg.Processor != nil {
			if n := len(cfg.Processor.Memory()) / vm.PageSize; n > 0 {
				numFrames = n
			}
		}
	}

	k.sched.NewRoot("boot")
	k.pool = vm.NewFramePool(k.sched, numFrames)

	if cfg.Exceptions != nil {
		cfg.Exceptions.SetExceptionHandler(k.trap)
	}
	if cfg.Timer != nil {
		cfg.Timer.SetInterruptHandler(k.sched.Yield)
	}
	return k
}

// Scheduler returns the kernel's scheduler.
func (k *Kernel) Scheduler() *kthread.Scheduler { return k.sched }

// Alarm returns the kernel's clock-driven wake service.
func (k *Kernel) Alarm() *alarm.Alarm { return k.alarm }

// Registry returns the kernel's pid map.
func (k *Kernel) Registry() *Registry { return k.registry }

// FramePool returns the kernel-wide free-frame pool.
func (k *Kernel) FramePool() *vm.FramePool { return k.pool }

// Root returns the root process, once Run has created it.
func (k *Kernel) Root() *process.Process { return k.root }

// trap routes a raised exception to the current process: syscalls to the
// dispatcher, page faults to the allocator, and everything else through
// the fatal exit path with the cause as status.
func (k *Kernel) trap(cause int) {
	p, ok := k.registry.LookupByThread(k.sched.Current())
	if !ok {
		klog.Err().Int("cause", cause).Log("exception raised outside any process")
		return
	}
	switch cause {
	case machine.ExceptionSyscall:
		p.HandleSyscall()
	case machine.ExceptionPageFault:
		p.PageFault(int(k.cfg.Processor.Registers().BadVAddr))
	default:
		p.HandleException(cause)
	}
}

// Run creates the root process executing cfg.Program with cfg.Args and
// blocks the boot thread until every process has exited. Load failures
// surface as errors rather than a dead machine.
func (k *Kernel) Run() error {
	if k.cfg.Program == "" {
		return ErrNoProgram
	}
	prog, ok := k.cfg.Programs(k.cfg.Program)
	if !ok {
		return fmt.Errorf("%w: %q not found", ErrNoProgram, k.cfg.Program)
	}

	k.root = process.New(k.sched, k.registry, k.cfg.Processor, k.cfg.FileSystem, k.cfg.Console, k.pool, k.cfg.Programs)
	if !k.root.Execute(prog.Loader, k.cfg.Program, k.cfg.Args, prog.Run) {
		k.registry.Unregister(k.root.PID)
		return fmt.Errorf("%w: %q", ErrLoadFailed, k.cfg.Program)
	}

	klog.Info().Str("program", k.cfg.Program).Log("kernel booted")

	k.sched.Join(k.root.Thread())
	for k.registry.Remaining() > 0 {
		k.sched.Yield()
	}
	return nil
}
