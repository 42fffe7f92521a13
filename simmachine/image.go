package simmachine

import (
	"fmt"

	"github.com/joeycumines/nachos-go/machine"
	"github.com/joeycumines/nachos-go/vm"
)

var _ machine.Loader = (*Image)(nil)

// ImageSection is one loadable section of an Image: a run of pages, all
// read-only or all writable. Section placement is implicit: sections
// are laid out contiguously from VPN 0, in order.
type ImageSection struct {
	ReadOnly bool
	Pages    [][]byte // each at most vm.PageSize bytes
}

// Image is an in-memory executable implementing machine.Loader against
// this machine's physical memory.
type Image struct {
	m        *Machine
	entry    uint32
	sections []ImageSection
	firstVPN []int
}

// NewImage builds an executable image for m. Sections are placed
// contiguously starting at VPN 0.
func (m *Machine) NewImage(entry uint32, sections ...ImageSection) *Image {
	im := &Image{m: m, entry: entry, sections: sections, firstVPN: make([]int, len(sections))}
	vpn := 0
	for i, s := range sections {
		im.firstVPN[i] = vpn
		vpn += len(s.Pages)
	}
	return im
}

// NewImageFromBytes builds a single writable section holding data, split
// into pages, with entry point 0. Used to load raw object files whose
// internal structure the core does not interpret.
func (m *Machine) NewImageFromBytes(data []byte) *Image {
	var pages [][]byte
	for off := 0; off < len(data); off += vm.PageSize {
		end := off + vm.PageSize
		if end > len(data) {
			end = len(data)
		}
		pages = append(pages, data[off:end])
	}
	if len(pages) == 0 {
		pages = [][]byte{nil}
	}
	return m.NewImage(0, ImageSection{Pages: pages})
}

// EntryPoint returns the image's entry point.
func (im *Image) EntryPoint() uint32 { return im.entry }

// NumSections returns the number of loadable sections.
func (im *Image) NumSections() int { return len(im.sections) }

// Section describes section i.
func (im *Image) Section(i int) machine.SectionInfo {
	s := im.sections[i]
	return machine.SectionInfo{FirstVPN: im.firstVPN[i], Length: len(s.Pages), ReadOnly: s.ReadOnly}
}

// LoadPage copies the page at sectionPageIndex (an index across the
// concatenation of all sections, in order) into the given physical
// frame, zero-filling the remainder of the frame.
func (im *Image) LoadPage(sectionPageIndex, frame int) error {
	idx := sectionPageIndex
	for _, s := range im.sections {
		if idx < len(s.Pages) {
			base := frame * vm.PageSize
			if base < 0 || base+vm.PageSize > len(im.m.mem) {
				return fmt.Errorf("simmachine: frame %d out of range", frame)
			}
			dst := im.m.mem[base : base+vm.PageSize]
			n := copy(dst, s.Pages[idx])
			for i := n; i < len(dst); i++ {
				dst[i] = 0
			}
			return nil
		}
		idx -= len(s.Pages)
	}
	return fmt.Errorf("simmachine: no section page %d", sectionPageIndex)
}
