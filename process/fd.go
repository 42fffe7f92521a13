package process

import "github.com/joeycumines/nachos-go/machine"

// fdTable is a process's integer->open-file map. fd 0 and 1 are
// preinstalled to the console on process start. New fds are assigned
// monotonically; the allocator returns −1 if the assigned id already
// exists in the table, a branch that is unreachable given monotonic
// assignment.
type fdTable struct {
	files map[int]machine.File
	next  int
}

func newFDTable(console machine.Console) *fdTable {
	t := &fdTable{files: make(map[int]machine.File), next: 2}
	t.files[0] = console.Stdin()
	t.files[1] = console.Stdout()
	return t
}

// install assigns the next monotonic fd to f, returning −1 on an id
// collision.
func (t *fdTable) install(f machine.File) int {
	fd := t.next
	if _, exists := t.files[fd]; exists {
		return -1
	}
	t.files[fd] = f
	t.next++
	return fd
}

func (t *fdTable) get(fd int) (machine.File, bool) {
	f, ok := t.files[fd]
	return f, ok
}

// closeFD closes and removes fd, tolerating a fd that is already gone
// so exit cleanup stays idempotent.
func (t *fdTable) closeFD(fd int) bool {
	f, ok := t.files[fd]
	if !ok {
		return false
	}
	delete(t.files, fd)
	_ = f.Close()
	return true
}

// closeAll closes every remaining fd, tolerating partial prior cleanup.
func (t *fdTable) closeAll() {
	for fd := range t.files {
		t.closeFD(fd)
	}
}
