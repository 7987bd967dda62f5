// Package dummyalloc implements the bootstrap bump allocator that services
// the very first allocation in the system: the core map array that the
// real frame allocator is built on top of. It never frees.
//
// Grounded on gopher-os/kernel/mem/pmm/allocator/bootmem.go's
// BootMemAllocator (monotonic counter, no dealloc support), simplified from
// "scan bootloader-reported memory regions" down to the single contiguous
// byte range this core's dummy allocator is specified to manage.
package dummyalloc

import (
	"github.com/kidneyos-go/kernelcore/kernel/errors"
	"github.com/kidneyos-go/kernelcore/kernel/mem"
)

var errOutOfMemory = errors.New(errors.KindOutOfMemory, "dummy_alloc", "out of memory")

// Allocator is a bump allocator over a fixed [start, end) byte range.
// Allocations are always frame-granular and are never freed; once handed
// out, a byte range is owned by its caller for the lifetime of the kernel.
type Allocator struct {
	start uintptr
	end   uintptr
}

// New creates an Allocator that services allocations out of [start, end).
func New(start, end uintptr) *Allocator {
	return &Allocator{start: start, end: end}
}

// Start returns the current bump pointer. Exposed so the frame allocator
// being bootstrapped can tell how many bytes the dummy allocator consumed.
func (a *Allocator) Start() uintptr { return a.start }

// End returns the end of the managed byte range.
func (a *Allocator) End() uintptr { return a.end }

// Alloc reserves nFrames contiguous, page-aligned frames and returns the
// base address of the reserved region. It fails with errOutOfMemory if the
// managed range cannot satisfy the request.
func (a *Allocator) Alloc(nFrames uint) (uintptr, *errors.Tagged) {
	alignedStart := (a.start + uintptr(mem.PageSize) - 1) &^ (uintptr(mem.PageSize) - 1)
	size := uintptr(nFrames) * uintptr(mem.PageSize)

	if alignedStart+size > a.end || alignedStart+size < alignedStart {
		return 0, errOutOfMemory
	}

	a.start = alignedStart + size
	return alignedStart, nil
}
