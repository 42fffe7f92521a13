package simmachine

import (
	"bytes"
	"sync"

	"github.com/joeycumines/nachos-go/machine"
)

var (
	_ machine.FileSystem = (*MemFS)(nil)
	_ machine.Console    = (*Console)(nil)
)

// MemFS is an in-memory machine.FileSystem. Each Open returns a handle
// with its own sequential position over the file's shared contents.
type MemFS struct {
	mu    sync.Mutex
	files map[string]*memFile
}

// NewMemFS creates an empty in-memory file system.
func NewMemFS() *MemFS { return &MemFS{files: make(map[string]*memFile)} }

// Open opens name, creating it if createIfMissing is set.
func (fs *MemFS) Open(name string, createIfMissing bool) (machine.File, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[name]
	if !ok {
		if !createIfMissing {
			return nil, false
		}
		f = &memFile{}
		fs.files[name] = f
	}
	return &memHandle{f: f}, true
}

// Remove deletes name, reporting whether it existed. Handles already
// open keep their contents, mirroring unlink semantics.
func (fs *MemFS) Remove(name string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.files[name]; !ok {
		return false
	}
	delete(fs.files, name)
	return true
}

// Contents returns a copy of name's current bytes, for tests.
func (fs *MemFS) Contents(name string) ([]byte, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[name]
	if !ok {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return bytes.Clone(f.data), true
}

type memFile struct {
	mu   sync.Mutex
	data []byte
}

type memHandle struct {
	f   *memFile
	pos int
}

func (h *memHandle) Read(buf []byte, off, length int) (int, error) {
	if off < 0 || length < 0 || off+length > len(buf) {
		return 0, nil
	}
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	if h.pos >= len(h.f.data) {
		return 0, nil
	}
	n := copy(buf[off:off+length], h.f.data[h.pos:])
	h.pos += n
	return n, nil
}

func (h *memHandle) Write(buf []byte, off, length int) (int, error) {
	if off < 0 || length < 0 || off+length > len(buf) {
		return 0, nil
	}
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	for h.pos+length > len(h.f.data) {
		h.f.data = append(h.f.data, 0)
	}
	n := copy(h.f.data[h.pos:h.pos+length], buf[off:off+length])
	h.pos += n
	return n, nil
}

func (h *memHandle) Close() error { return nil }

// Console is an in-memory machine.Console: stdin is preloaded with a
// fixed input, stdout accumulates everything written.
type Console struct {
	in  *memHandle
	out *memHandle
}

// NewConsole creates a console whose stdin yields input.
func NewConsole(input []byte) *Console {
	return &Console{
		in:  &memHandle{f: &memFile{data: bytes.Clone(input)}},
		out: &memHandle{f: &memFile{}},
	}
}

// Stdin returns the console input stream.
func (c *Console) Stdin() machine.File { return c.in }

// Stdout returns the console output stream.
func (c *Console) Stdout() machine.File { return c.out }

// Output returns everything written to stdout so far.
func (c *Console) Output() []byte {
	c.out.f.mu.Lock()
	defer c.out.f.mu.Unlock()
	return bytes.Clone(c.out.f.data)
}
