package vm

import (
	"golang.org/x/exp/constraints"

	"github.com/joeycumines/nachos-go/machine"
)

// PageSize is the fixed virtual/physical page size in bytes, matching
// the simulated processor's memory granularity.
const PageSize = 1024

// Translator bridges a process's PageTable against a shared physical
// memory buffer and frame pool, implementing the bounds-safe
// virtual-memory copies and page-fault handling.
type Translator struct {
	table  *PageTable
	pool   *FramePool
	memory []byte // shared physical memory, owned by the machine.Processor
}

// NewTranslator binds table to the given physical memory buffer and
// frame pool.
func NewTranslator(table *PageTable, pool *FramePool, memory []byte) *Translator {
	return &Translator{table: table, pool: pool, memory: memory}
}

func (tr *Translator) split(vaddr int) (vpn, offset int) {
	return vaddr / PageSize, vaddr % PageSize
}

// translate resolves vaddr to a physical address, returning ok=false if
// the page is invalid or the result would overflow physical memory.
func (tr *Translator) translate(vaddr int) (paddr int, ok bool) {
	if vaddr < 0 {
		return 0, false
	}
	vpn, offset := tr.split(vaddr)
	e, inRange := tr.table.Entry(vpn)
	if !inRange || !e.Valid {
		return 0, false
	}
	paddr = e.Frame*PageSize + offset
	if paddr < 0 || paddr >= len(tr.memory) {
		return 0, false
	}
	return paddr, true
}

// ReadVirtualMemory copies up to len(buf)-off bytes starting at vaddr
// into buf[off:], returning the number of bytes actually transferred.
// Never panics: an invalid or out-of-range vaddr transfers zero bytes.
func (tr *Translator) ReadVirtualMemory(vaddr int, buf []byte, off, length int) int {
	paddr, ok := tr.translate(vaddr)
	if !ok || off < 0 || off > len(buf) {
		return 0
	}
	vpn, _ := tr.split(vaddr)
	frameLimit := (vpn + 1) * PageSize
	n := minOf(length, len(buf)-off, frameLimit-vaddr, len(tr.memory)-paddr)
	if n <= 0 {
		return 0
	}
	copy(buf[off:off+n], tr.memory[paddr:paddr+n])
	tr.table.MarkUsedDirty(vpn, false)
	return n
}

// WriteVirtualMemory copies up to len(buf)-off bytes from buf[off:] into
// user memory starting at vaddr, returning the number of bytes actually
// transferred. Writes to a read-only page transfer zero bytes.
func (tr *Translator) WriteVirtualMemory(vaddr int, buf []byte, off, length int) int {
	vpn, _ := tr.split(vaddr)
	e, inRange := tr.table.Entry(vpn)
	if !inRange || !e.Valid || e.ReadOnly {
		return 0
	}
	paddr, ok := tr.translate(vaddr)
	if !ok || off < 0 || off > len(buf) {
		return 0
	}
	frameLimit := (vpn + 1) * PageSize
	n := minOf(length, len(buf)-off, frameLimit-vaddr, len(tr.memory)-paddr)
	if n <= 0 {
		return 0
	}
	copy(tr.memory[paddr:paddr+n], buf[off:off+n])
	tr.table.MarkUsedDirty(vpn, true)
	return n
}

func minOf[T constraints.Ordered](a T, rest ...T) T {
	m := a
	for _, v := range rest {
		if v < m {
			m = v
		}
	}
	return m
}

// HandlePageFault services a page fault for the given bad virtual
// address: it allocates a frame (blocking on the pool if none is free)
// and marks the entry valid. The caller is responsible for rewinding
// the faulting instruction's PC.
func (tr *Translator) HandlePageFault(badVAddr int) {
	vpn, _ := tr.split(badVAddr)
	frame := tr.pool.Allocate()
	e, ok := tr.table.Entry(vpn)
	if !ok {
		tr.pool.Return(frame)
		return
	}
	e.Frame = frame
	e.Valid = true
	tr.table.SetEntry(e)
}

// RewindPC applies the standard page-fault PC-rewind so the faulting
// instruction re-executes once the page is resident.
func RewindPC(regs *machine.Registers) {
	regs.NextPC = regs.PC
}
