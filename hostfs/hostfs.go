// Package hostfs adapts real operating-system files and stdio to the
// machine.FileSystem and machine.Console interfaces, so the syscall
// surface can be exercised against actual files rather than in-memory
// fakes.
package hostfs

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/joeycumines/nachos-go/machine"
)

var (
	_ machine.FileSystem = (*FS)(nil)
	_ machine.Console    = (*Console)(nil)
	_ machine.File       = (*file)(nil)
)

// FS exposes a single host directory as the kernel's file system. Names
// are flattened with filepath.Base; the core does not interpret path
// syntax, and confining everything to one directory keeps a misbehaving
// user program from reaching outside it.
type FS struct {
	dir string
}

// New creates a file system rooted at dir.
func New(dir string) *FS { return &FS{dir: dir} }

func (fs *FS) path(name string) string {
	return filepath.Join(fs.dir, filepath.Base(name))
}

// Open opens name within the root directory, creating it first when
// createIfMissing is set.
func (fs *FS) Open(name string, createIfMissing bool) (machine.File, bool) {
	flags := os.O_RDWR
	if createIfMissing {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(fs.path(name), flags, 0o644)
	if err != nil {
		return nil, false
	}
	return &file{f: f}, true
}

// Remove deletes name, reporting whether it existed and was removed.
func (fs *FS) Remove(name string) bool {
	return os.Remove(fs.path(name)) == nil
}

// file wraps an *os.File behind the sequential-position, buffer-offset
// read/write shape the syscall layer drives.
type file struct {
	f *os.File
}

func (x *file) Read(buf []byte, off, length int) (int, error) {
	if off < 0 || length < 0 || off+length > len(buf) {
		return 0, nil
	}
	n, err := x.f.Read(buf[off : off+length])
	if n > 0 || errors.Is(err, io.EOF) {
		return n, nil // a short read at EOF is a success, like the console's
	}
	return n, err
}

func (x *file) Write(buf []byte, off, length int) (int, error) {
	if off < 0 || length < 0 || off+length > len(buf) {
		return 0, nil
	}
	return x.f.Write(buf[off : off+length])
}

func (x *file) Close() error { return x.f.Close() }

// Console mounts the host's stdin and stdout as the two console streams.
type Console struct {
	in, out *file
}

// NewConsole wraps the host process's stdio.
func NewConsole() *Console {
	return &Console{in: &file{f: os.Stdin}, out: &file{f: os.Stdout}}
}

// Stdin returns the console input stream.
func (c *Console) Stdin() machine.File { return c.in }

// Stdout returns the console output stream.
func (c *Console) Stdout() machine.File { return c.out }
