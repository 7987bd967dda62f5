package pmm

import (
	"github.com/kidneyos-go/kernelcore/kernel/errors"
	"github.com/kidneyos-go/kernelcore/kernel/mem"
	"github.com/kidneyos-go/kernelcore/kernel/mem/coremap"
)

var errOutOfMemory = errors.New(errors.KindOutOfMemory, "frame_alloc", "out of memory")

// Allocator allocates and deallocates runs of physical page frames using
// first-fit scanning over a coremap.CoreMap. Constructed once, during
// heap.Init, with the base pointer of the region the CoreMap describes.
type Allocator struct {
	base      uintptr
	coreMap   *coremap.CoreMap
	numFrames uint
}

// New constructs an Allocator over the region starting at base and
// spanning numFrames frames, tracked by coreMap. coreMap must already have
// numFrames entries.
func New(base uintptr, coreMap *coremap.CoreMap, numFrames uint) *Allocator {
	return &Allocator{base: base, coreMap: coreMap, numFrames: numFrames}
}

// Alloc reserves a run of n contiguous frames using first-fit and returns
// the base address and byte length of the run.
func (a *Allocator) Alloc(n uint) (ptr uintptr, size mem.Size, err *errors.Tagged) {
	if n == 0 {
		return 0, 0, errOutOfMemory
	}

	start, ferr := a.coreMap.FindFreeRun(n)
	if ferr != nil {
		return 0, 0, ferr
	}

	a.coreMap.MarkAllocated(start, n)

	return a.base + uintptr(start)*uintptr(mem.PageSize), mem.Size(n) * mem.PageSize, nil
}

// Dealloc releases the run of frames starting at ptr (a value previously
// returned by Alloc) and returns the number of frames freed, for
// accounting by the heap façade.
func (a *Allocator) Dealloc(ptr uintptr) uint {
	start := uint((ptr - a.base) / uintptr(mem.PageSize))
	return a.coreMap.MarkFree(start)
}

// NumFrames returns the total number of frames this allocator manages.
func (a *Allocator) NumFrames() uint { return a.numFrames }

// Base returns the base address of the managed region.
func (a *Allocator) Base() uintptr { return a.base }
