// Package pmm implements the frame allocator: allocation and
// deallocation of runs of physical page frames, layered on top of a
// CoreMap built by the bootstrap dummy allocator.
//
// Grounded on gopher-os/kernel/mem/pmm/frame.go (the Frame type) and
// kernel/mem/pmm/allocator/bitmap_allocator.go (first-fit-over-pools
// shape), adapted to scan a coremap.CoreMap instead of a raw bitmap.
package pmm

import (
	"math"

	"github.com/kidneyos-go/kernelcore/kernel/mem"
)

// Frame describes a physical memory page index, relative to the
// allocator's managed-region base.
type Frame uint64

// InvalidFrame is a sentinel Frame value that does not refer to any page.
const InvalidFrame = Frame(math.MaxUint64)

// IsValid returns true if this is a valid frame.
func (f Frame) IsValid() bool {
	return f != InvalidFrame
}

// Address returns the byte offset of this frame within the managed
// region.
func (f Frame) Address() uintptr {
	return uintptr(f) * uintptr(mem.PageSize)
}
