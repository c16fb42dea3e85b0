// Package mem models the flat physical address space a stage-0 loader
// writes into. RAM windows are mapped explicitly; reads and writes
// outside a mapped window fail with a MemError instead of corrupting
// anything, which is the hosted stand-in for scribbling over unbacked
// bus addresses on real hardware.
package mem

import (
	"fmt"
	"sort"
)

const (
	MEM_READ_UNMAPPED = iota
	MEM_WRITE_UNMAPPED
)

type MemError struct {
	Addr uint64
	Size int
	Enum int
}

func (m *MemError) Error() string {
	reason := "memory error"
	switch m.Enum {
	case MEM_READ_UNMAPPED:
		reason = "unmapped read"
	case MEM_WRITE_UNMAPPED:
		reason = "unmapped write"
	}
	return fmt.Sprintf("%s at %#x(%d)", reason, m.Addr, m.Size)
}

// Phys is the physical memory model.
type Phys struct {
	ram Regions
}

// RangeValid checks whether addr..addr+size is fully backed by mapped
// regions, crossing region boundaries if needed.
func (m *Phys) RangeValid(addr, size uint64) bool {
	first := m.ram.bsearch(addr)
	if first == -1 {
		return false
	}
	end := addr + size
	for _, r := range m.ram[first:] {
		if !r.Contains(addr) {
			break
		}
		addr = r.Addr + r.Size
		if addr >= end {
			break
		}
	}
	return addr >= end
}

// Map backs <addr> - <addr>+<size> with zeroed memory. If zero is false,
// any data already mapped in the range is carried over first. Overlapping
// regions are unmapped, then the region list is re-sorted so lookups can
// binary search.
func (m *Phys) Map(addr, size uint64, prot int, zero bool) *Region {
	data := make([]byte, size)
	if !zero {
		m.Read(addr, data)
	}
	if m.RangeValid(addr, size) {
		m.Unmap(addr, size)
	}
	region := &Region{Addr: addr, Size: size, Prot: prot, Data: data}
	m.ram = append(m.ram, region)
	sort.Sort(m.ram)
	return region
}

func (m *Phys) Unmap(addr, size uint64) {
	tmp := make([]*Region, 0, len(m.ram))
	for _, r := range m.ram {
		if oaddr, osize, ok := r.Intersect(addr, size); ok {
			left, right := r.Split(oaddr, osize)
			if left != nil {
				tmp = append(tmp, left)
			}
			if right != nil {
				tmp = append(tmp, right)
			}
		} else {
			tmp = append(tmp, r)
		}
	}
	m.ram = tmp
}

func (m *Phys) Read(addr uint64, p []byte) error {
	if !m.RangeValid(addr, uint64(len(p))) {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_READ_UNMAPPED}
	}
	i := m.ram.bsearch(addr)
	if i >= 0 {
		for _, r := range m.ram[i:] {
			if !r.Contains(addr) {
				break
			}
			o := addr - r.Addr
			n := copy(p, r.Data[o:])
			addr, p = addr+uint64(n), p[n:]
		}
	}
	return nil
}

func (m *Phys) Write(addr uint64, p []byte) error {
	if !m.RangeValid(addr, uint64(len(p))) {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_WRITE_UNMAPPED}
	}
	i := m.ram.bsearch(addr)
	if i >= 0 {
		for _, r := range m.ram[i:] {
			if !r.Contains(addr) {
				break
			}
			o := addr - r.Addr
			n := copy(r.Data[o:], p)
			addr, p = addr+uint64(n), p[n:]
		}
	}
	return nil
}

// Regions returns the current mapping list, sorted by address.
func (m *Phys) Regions() Regions {
	return m.ram
}
