// Command nachos boots the kernel over the in-memory reference machine,
// a host-directory file system and the host console, running the shell
// program named by `-x program args…`. The program's object code is read
// from the file system and loaded page by page; with instruction
// interpretation out of scope, the root process loads, runs its entry
// behavior (none, for raw object files) and exits.
package main

import (
	"fmt"
	"os"

	"github.com/joeycumines/nachos-go/hostfs"
	"github.com/joeycumines/nachos-go/kernel"
	"github.com/joeycumines/nachos-go/kthread"
	"github.com/joeycumines/nachos-go/process"
	"github.com/joeycumines/nachos-go/simmachine"
)

const numFrames = 64

func main() {
	var cfg kernel.Config
	cfg.ParseArgs(os.Args[1:])
	if cfg.Program == "" {
		fmt.Fprintln(os.Stderr, "usage: nachos -x program [args...]")
		os.Exit(2)
	}

	m := simmachine.New(numFrames)
	fs := hostfs.New(".")

	cfg.Policy = kthread.Priority
	cfg.Processor = m
	cfg.Interrupts = m
	cfg.Exceptions = m
	cfg.Timer = m
	cfg.FileSystem = fs
	cfg.Console = hostfs.NewConsole()
	cfg.Programs = func(name string) (process.Program, bool) {
		f, ok := fs.Open(name, false)
		if !ok {
			return process.Program{}, false
		}
		defer f.Close()
		var data []byte
		buf := make([]byte, 4096)
		for {
			n, err := f.Read(buf, 0, len(buf))
			if n > 0 {
				data = append(data, buf[:n]...)
			}
			if n == 0 || err != nil {
				break
			}
		}
		return process.Program{
			Loader: m.NewImageFromBytes(data),
			Run:    func(p *process.Process) { p.Exit(0) },
		}, true
	}

	if err := kernel.New(cfg).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
