// Package vmm provides the PageManager collaborator that the thread
// package asks to install virtual-to-physical mappings for a thread's
// stacks and ELF segments.
//
// gopher-os's real implementation (kernel/mem/vmm/vmm.go, pdt.go, walk.go)
// walks a 4-level x86 page directory and installs page table entries one
// paging level at a time. This module is never loaded as a real bootable
// kernel and has no MMU to program, so PageManager stands in for the real
// page tables with a sorted slice of mappings instead of walking hardware
// page-table structures; the flag constants and the MapRange signature
// are carried over unchanged from the teacher so the call shape a thread
// uses to ask for a mapping looks exactly as it would against a real MMU.
package vmm

import (
	"sort"

	"github.com/kidneyos-go/kernelcore/kernel/errors"
	"github.com/kidneyos-go/kernelcore/kernel/mem"
)

// Flag describes a permission bit on a page table entry.
type Flag uintptr

const (
	// FlagPresent marks a mapping as valid.
	FlagPresent Flag = 1 << iota
	// FlagRW allows writes to the mapped page; without it the page is read-only.
	FlagRW
	// FlagUserAccessible allows user-mode code to access the page.
	FlagUserAccessible
	// FlagNoExecute marks the page as containing non-executable data.
	FlagNoExecute
)

var errOverlap = errors.New(errors.KindInvalidState, "vmm", "mapping overlaps an existing region")

// mapping is one installed virtual-to-physical region.
type mapping struct {
	virtStart uintptr
	physStart uintptr
	pages     uint
	flags     Flag
}

func (m mapping) virtEnd() uintptr { return m.virtStart + uintptr(m.pages)*uintptr(mem.PageSize) }

// PageManager tracks the virtual memory mappings of a single address
// space. The zero value is an empty address space ready to use.
type PageManager struct {
	mappings []mapping
}

// New returns an empty PageManager.
func New() *PageManager {
	return &PageManager{}
}

// MapRange installs a mapping from [virt, virt+len) to the physical
// region starting at phys, rounding len up to a whole number of pages.
// writable and user control FlagRW and FlagUserAccessible; code pages are
// expected to be mapped non-writable and data pages writable, matching
// thread_control_block.rs's segment-by-segment mapping loop.
func (pm *PageManager) MapRange(phys, virt uintptr, length mem.Size, writable, user bool) *errors.Tagged {
	pages := length.Pages()
	if pages == 0 {
		pages = 1
	}

	flags := FlagPresent
	if writable {
		flags |= FlagRW
	}
	if user {
		flags |= FlagUserAccessible
	}

	m := mapping{virtStart: virt, physStart: phys, pages: uint(pages), flags: flags}

	idx := sort.Search(len(pm.mappings), func(i int) bool { return pm.mappings[i].virtStart >= m.virtStart })
	if idx > 0 && pm.mappings[idx-1].virtEnd() > m.virtStart {
		return errOverlap
	}
	if idx < len(pm.mappings) && m.virtEnd() > pm.mappings[idx].virtStart {
		return errOverlap
	}

	pm.mappings = append(pm.mappings, mapping{})
	copy(pm.mappings[idx+1:], pm.mappings[idx:])
	pm.mappings[idx] = m

	return nil
}

// Translate looks up the physical address backing a virtual address,
// returning ok=false if no mapping covers it. Standing in for the real
// page-table walk gopher-os's translate.go performs.
func (pm *PageManager) Translate(virt uintptr) (phys uintptr, ok bool) {
	for _, m := range pm.mappings {
		if virt >= m.virtStart && virt < m.virtEnd() {
			return m.physStart + (virt - m.virtStart), true
		}
	}
	return 0, false
}

// Unmap removes the mapping covering the page at virt, if any.
func (pm *PageManager) Unmap(virt uintptr) {
	for i, m := range pm.mappings {
		if virt >= m.virtStart && virt < m.virtEnd() {
			pm.mappings = append(pm.mappings[:i], pm.mappings[i+1:]...)
			return
		}
	}
}

// Mappings returns a snapshot of the currently installed mappings, for
// diagnostics and tests.
func (pm *PageManager) Mappings() []mapping {
	out := make([]mapping, len(pm.mappings))
	copy(out, pm.mappings)
	return out
}
