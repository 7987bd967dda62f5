// Package heap implements the global heap façade: a single allocate/
// deallocate entry point that dispatches on the allocator's current
// lifecycle state. State is a tagged variant, {Deinit, Setup, Initialized},
// with one-way, monotonic transitions (Setup -> Initialized -> Deinit);
// attempting a transition from the wrong state is a fatal programming
// error, handled by halting rather than panicking (this code runs inside
// the allocation path itself, where panicking is forbidden).
//
// Grounded on gopher-os/kernel/mem/pmm/allocator.Init's bootstrap-then-
// replace handoff (SetFrameAllocator(earlyAllocFrame) then
// FrameAllocator.init()) for the two-stage structure, and on
// original_source's KernelAllocatorState enum plus its four monotonic
// counters (TOTAL_NUM_ALLOCATIONS et al.) and deinit leak panic, which
// spec.md describes as prose but original_source names explicitly.
package heap

import (
	"github.com/kidneyos-go/kernelcore/kernel/errors"
	"github.com/kidneyos-go/kernelcore/kernel/mem"
	"github.com/kidneyos-go/kernelcore/kernel/mem/coremap"
	"github.com/kidneyos-go/kernelcore/kernel/mem/dummyalloc"
	"github.com/kidneyos-go/kernelcore/kernel/mem/pmm"
	"github.com/kidneyos-go/kernelcore/kernel/mem/subblock"
	"github.com/kidneyos-go/kernelcore/kernel/panicking"
)

// maxSupportedAlign is the largest alignment the façade will satisfy. A
// layout asking for more than one frame's worth of alignment cannot be
// serviced by either the frame allocator (which only ever hands out
// frame-aligned runs) or the sub-block allocator.
const maxSupportedAlign = uintptr(mem.PageSize)

type state uint8

const (
	stateDeinit state = iota
	stateSetup
	stateInitialized
)

// panicFn is swapped out by tests so a fatal path can be observed without
// actually halting.
var panicFn = panicking.Panic

var (
	errAlreadyInitialized   = errors.New(errors.KindInvalidState, "heap", "init called while kernel allocator was already initialized")
	errNotInitialized       = errors.New(errors.KindInvalidState, "heap", "alloc called on deinitialized kernel allocator")
	errDeallocNotReady      = errors.New(errors.KindInvalidState, "heap", "dealloc called outside Initialized state")
	errFrameAllocNotReady   = errors.New(errors.KindInvalidState, "heap", "frame_alloc called outside Initialized state")
	errFrameDeallocNotReady = errors.New(errors.KindInvalidState, "heap", "frame_dealloc called outside Initialized state")
	errDeinitNotReady       = errors.New(errors.KindInvalidState, "heap", "deinit called before initialization of kernel allocator")
	errLeaksDetected        = errors.New(errors.KindLeak, "heap", "leaks detected")
)

// Heap is the global allocator façade. The zero value is not usable;
// construct one with New and call Init before any allocation is made.
type Heap struct {
	st state

	dummy    *dummyalloc.Allocator
	frames   *pmm.Allocator
	subblock *subblock.Allocator

	allocations       uint64
	deallocations     uint64
	framesAllocated   uint64
	framesDeallocated uint64
}

// New constructs a Heap in the Setup state, backed by a dummy allocator
// over [start, end). This is the state the allocator is in before
// heap_init runs the rest of the bootstrap sequence.
func New(start, end uintptr) *Heap {
	return &Heap{
		st:    stateSetup,
		dummy: dummyalloc.New(start, end),
	}
}

// Init carves the core map out of the dummy allocator, constructs the
// frame allocator over the remaining region, and transitions Setup ->
// Initialized. It must be the first allocation-touching call made against
// h; calling it twice, or calling it on a Heap not in Setup, is fatal.
func (h *Heap) Init(numFrames uint) {
	if h.st != stateSetup {
		panicFn(errAlreadyInitialized)
	}

	entriesPtr, err := h.dummy.Alloc(coreMapFrames(numFrames))
	if err != nil {
		panicFn(err)
	}

	entries := makeEntriesAt(entriesPtr, numFrames)
	cm := coremap.New(entries)

	framesBase := h.dummy.Start()
	h.frames = pmm.New(framesBase, cm, numFrames)
	h.subblock = subblock.New(h.frames)
	h.st = stateInitialized
}

// coreMapFrames returns how many whole frames are needed to hold numFrames
// coremap.Entry values.
func coreMapFrames(numFrames uint) uint {
	return uint(mem.Size(numFrames * entrySize).Pages())
}

// Alloc satisfies a heap allocation request of size bytes with the
// requested alignment, routing to the dummy allocator while in Setup and
// to the sub-block allocator (which itself delegates to the frame
// allocator for large or slab-fill requests) once Initialized. It returns
// a null pointer only for Unsupported alignments; any other failure halts,
// since the allocation path itself cannot be allowed to fail and unwind.
func (h *Heap) Alloc(size mem.Size, align uintptr) uintptr {
	if align > maxSupportedAlign {
		return 0
	}

	switch h.st {
	case stateSetup:
		ptr, err := h.dummy.Alloc(uint(size.Pages()))
		if err != nil {
			panicFn(err)
		}
		h.recordAlloc(uint64(size.Pages()))
		return ptr

	case stateInitialized:
		if uint(size) > uint(mem.PageSize)/2 {
			ptr, frameSize, err := h.frames.Alloc(uint(size.Pages()))
			if err != nil {
				panicFn(err)
			}
			h.recordAlloc(uint64(frameSize.Pages()))
			return ptr
		}

		ptr, err := h.subblock.Alloc(uint(size))
		if err != nil {
			panicFn(err)
		}
		h.recordAlloc(0)
		return ptr

	default:
		panicFn(errNotInitialized)
		return 0
	}
}

// Dealloc releases a pointer previously returned by Alloc. Calling it
// before Init or after Deinit is fatal.
func (h *Heap) Dealloc(ptr uintptr, size mem.Size) {
	if h.st != stateInitialized {
		panicFn(errDeallocNotReady)
	}

	if uint(size) > uint(mem.PageSize)/2 {
		n := h.frames.Dealloc(ptr)
		h.recordDealloc(uint64(n))
		return
	}

	h.subblock.Dealloc(ptr)
	h.recordDealloc(0)
}

// FrameAlloc services a kernel-internal request for n contiguous physical
// frames, bypassing the sub-block size classes entirely. Used by TCB
// construction for stacks and ELF segment mappings.
func (h *Heap) FrameAlloc(n uint) (uintptr, *errors.Tagged) {
	if h.st != stateInitialized {
		panicFn(errFrameAllocNotReady)
	}

	ptr, _, err := h.frames.Alloc(n)
	if err != nil {
		return 0, err
	}
	h.recordAlloc(uint64(n))
	return ptr, nil
}

// FrameDealloc releases frames previously returned by FrameAlloc.
func (h *Heap) FrameDealloc(ptr uintptr) {
	if h.st != stateInitialized {
		panicFn(errFrameDeallocNotReady)
	}
	n := h.frames.Dealloc(ptr)
	h.recordDealloc(uint64(n))
}

func (h *Heap) recordAlloc(frames uint64) {
	h.allocations++
	h.framesAllocated += frames
}

func (h *Heap) recordDealloc(frames uint64) {
	h.deallocations++
	h.framesDeallocated += frames
}

// Stats reports the façade's monotonically non-decreasing accounting
// counters: total allocations, deallocations, frames allocated, and frames
// deallocated. Supplements spec.md's implicit leak-check counters with an
// explicit query API, following original_source's four AtomicUsize
// globals (TOTAL_NUM_ALLOCATIONS and friends).
func (h *Heap) Stats() (allocs, deallocs, framesIn, framesOut uint64) {
	return h.allocations, h.deallocations, h.framesAllocated, h.framesDeallocated
}

// Deinit asserts that allocation counters balance and transitions
// Initialized -> Deinit. A mismatch is a leak and halts rather than
// returning an error, since a leak at shutdown is always a programming
// bug, not a recoverable condition.
func (h *Heap) Deinit() {
	if h.st != stateInitialized {
		panicFn(errDeinitNotReady)
	}

	if h.allocations != h.deallocations || h.framesAllocated != h.framesDeallocated {
		panicFn(errLeaksDetected)
	}

	h.st = stateDeinit
}
