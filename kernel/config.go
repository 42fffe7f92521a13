// Package kernel is the bootstrap: it parses the shell-program command
// line, builds the scheduler, alarm, frame pool and pid registry over
// the supplied machine collaborators, installs the trap dispatcher, and
// runs the root process to completion.
package kernel

import (
	"github.com/joeycumines/nachos-go/kthread"
	"github.com/joeycumines/nachos-go/machine"
	"github.com/joeycumines/nachos-go/process"
)

const defaultNumFrames = 64

// Config configures a Kernel. The zero value is not bootable on its own:
// Processor, FileSystem, Console and Programs must be supplied. Every
// other field has a usable default.
type Config struct {
	// Program is the shell program the root process executes, with Args
	// as its argument vector.
	Program string
	Args    []string

	// Policy selects the scheduler's donation policy. Defaults to
	// kthread.Priority.
	Policy kthread.Kind

	// NumFrames sizes the free-frame pool. Defaults to the number of
	// frames backing the processor's physical memory, or
	// defaultNumFrames if that cannot be determined.
	NumFrames int

	Processor  machine.Processor
	Interrupts machine.InterruptController
	Exceptions machine.ExceptionVector
	Timer      machine.Timer
	FileSystem machine.FileSystem
	Console    machine.Console

	// Programs resolves a program name (for the root process and for
	// exec) to its loader and entry behavior.
	Programs process.ProgramFactory
}

// ParseArgs scans a host command line for the `-x program args…` surface
// and merges it into c. Arguments following the program name accumulate
// until the next `-`-prefixed token; any other flag belongs to the host
// runtime and is skipped.
func (c *Config) ParseArgs(argv []string) {
	for i := 0; i < len(argv); i++ {
		if argv[i] != "-x" {
			continue
		}
		if i+1 >= len(argv) {
			return
		}
		c.Program = argv[i+1]
		c.Args = nil
		for j := i + 2; j < len(argv); j++ {
			if len(argv[j]) > 0 && argv[j][0] == '-' {
				break
			}
			c.Args = append(c.Args, argv[j])
		}
		return
	}
}
