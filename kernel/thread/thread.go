// Package thread implements the thread control block: per-thread state,
// stacks, and the context-setup stack frame consumed by the scheduler's
// first switch into a newly created thread.
//
// No Go repo in the retrieved pack hand-rolls a TCB — gopher-os instead
// bootstraps the real Go runtime scheduler (kernel/goruntime/bootstrap.go
// patches go:linkname hooks so the stock `g`/`m`/`p` machinery runs
// directly on the freestanding kernel) specifically to avoid writing this
// code. This package is grounded instead on
// original_source/kernel/src/threading/thread_control_block.rs: the field
// set, the ELF-mapping loop (frames = ceil(len/FrameSize), frame_alloc,
// map_range, copy + zero-tail), new_func's simpler path, and the
// stack-space check ahead of context setup all follow it directly. Struct
// layout, doc-comment density, and error style (*errors.Tagged returns,
// halting through panicking rather than panicking directly) follow
// gopher-os's idiom throughout.
package thread

import (
	"reflect"
	"sync/atomic"
	"unsafe"

	"github.com/kidneyos-go/kernelcore/kernel/errors"
	"github.com/kidneyos-go/kernelcore/kernel/mem"
	"github.com/kidneyos-go/kernelcore/kernel/panicking"
	"github.com/kidneyos-go/kernelcore/kernel/thread/elf"
	"github.com/kidneyos-go/kernelcore/kernel/vmm"
)

// panicFn is swapped out by tests so a fatal path can be observed without
// actually halting.
var panicFn = panicking.Panic

// Tid is a thread identifier. 0 is reserved for the bootstrap kernel
// thread.
type Tid uint16

// KernelStackFrames is the number of frames reserved for a thread's
// kernel stack, matching original_source's KERNEL_THREAD_STACK_FRAMES.
const KernelStackFrames = 2

// UserStackFrames is the number of frames reserved for a thread's user
// stack, matching original_source's USER_THREAD_STACK_FRAMES.
const UserStackFrames = 4 * 1024

// UserStackBottomVirt is the fixed virtual address at which every
// thread's user stack is mapped.
const UserStackBottomVirt = uintptr(0x100000)

// nextTid starts at 1, not 0: tid 0 is reserved for the bootstrap thread
// (NewBootstrap hardcodes it) and must never be handed out by
// allocateTid, matching original_source's NEXT_UNRESERVED_TID starting
// past the reserved bootstrap tid.
var nextTid uint32 = 1

// copyIntoKernelVirt copies segLen bytes from image, starting at
// fileOffset, into the raw memory at dst. Uses the same SliceHeader
// overlay idiom as mem.Memset/mem.Memcopy to view a raw address as a
// typed slice without an intervening allocation.
func copyIntoKernelVirt(dst uintptr, image []byte, fileOffset uint64, segLen uintptr) {
	if segLen == 0 || fileOffset+uint64(segLen) > uint64(len(image)) {
		return
	}
	target := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Data: dst,
		Len:  int(segLen),
		Cap:  int(segLen),
	}))
	copy(target, image[fileOffset:fileOffset+uint64(segLen)])
}

// allocateTid returns the next unreserved thread ID. Grounded on
// original_source's NEXT_UNRESERVED_TID atomic counter.
func allocateTid() Tid {
	return Tid(atomic.AddUint32(&nextTid, 1) - 1)
}

// Status is the lifecycle state of a thread, mirroring spec.md's
// {Invalid, Ready, Running, Blocked, Dying} set.
type Status uint8

const (
	Invalid Status = iota
	Ready
	Running
	Blocked
	Dying
)

// FrameSource is the subset of the heap façade the TCB constructor needs:
// frame-granular allocation and deallocation for stacks and ELF segments.
type FrameSource interface {
	FrameAlloc(n uint) (uintptr, *errors.Tagged)
	FrameDealloc(ptr uintptr)
}

// contextFrameSize is the size, in bytes, of the machine-specific frame
// setupContext preloads onto a new thread's kernel stack; the first
// context switch into the thread pops this frame to resume at the
// trampoline that transfers control to eip. This module never actually
// performs a hardware context switch, so the frame is an opaque
// placeholder of a plausible register-save-area size rather than a real
// one, but the has_stack_space accounting around it is exercised exactly
// as original_source describes.
const contextFrameSize = 64

// TCB is a thread control block: all state the scheduler and context
// switch need to suspend and resume one thread of execution.
type TCB struct {
	Tid    Tid
	Status Status

	kernelStackBase uintptr
	kernelStackTop  uintptr // current kernel stack pointer

	userStackBase uintptr

	UserEIP uintptr
	UserESP uintptr

	ExitCode    int32
	HasExitCode bool

	PageManager *vmm.PageManager

	frames FrameSource
}

var (
	errStackOverflow = errors.New(errors.KindStackOverflow, "thread", "context setup overran the kernel stack")
	errReapNotDying  = errors.New(errors.KindInvalidState, "thread", "a thread must be dying to be reaped")
)

// NewELF constructs a TCB by parsing image as an ELF64 executable,
// mapping each loadable segment into a fresh page manager, and allocating
// kernel and user stacks. Status starts Invalid and becomes Ready once
// context setup succeeds.
func NewELF(frames FrameSource, image []byte) (*TCB, *errors.Tagged) {
	entry, areas, err := elf.Parse(image)
	if err != nil {
		return nil, err
	}

	pm := vmm.New()

	for _, area := range areas {
		length := mem.Size(area.VMEnd - area.VMStart)
		nFrames := uint(length.Pages())
		if nFrames == 0 {
			nFrames = 1
		}

		kernelVirt, ferr := frames.FrameAlloc(nFrames)
		if ferr != nil {
			return nil, ferr
		}

		if merr := pm.MapRange(kernelVirt, area.VMStart, length, area.Writable, true); merr != nil {
			return nil, merr
		}

		segLen := uintptr(area.VMEnd - area.VMStart)
		copyIntoKernelVirt(kernelVirt, image, area.FileOffset, segLen)

		tailStart := segLen
		tailLen := mem.Size(nFrames)*mem.PageSize - mem.Size(segLen)
		if tailLen > 0 {
			mem.Memset(kernelVirt+tailStart, 0, tailLen)
		}
	}

	t := &TCB{
		Tid:         allocateTid(),
		Status:      Invalid,
		PageManager: pm,
		frames:      frames,
	}

	if err := t.allocateKernelStack(); err != nil {
		return nil, err
	}
	if err := t.allocateUserStack(false); err != nil {
		return nil, err
	}

	t.UserEIP = entry
	t.UserESP = UserStackBottomVirt + uintptr(UserStackFrames)*uintptr(mem.PageSize)

	if err := t.setupContext(); err != nil {
		return nil, err
	}

	t.Status = Ready
	return t, nil
}

// NewFunc constructs a pure kernel thread that begins executing at entry,
// skipping ELF segment mapping. The user stack is zero-initialized.
func NewFunc(frames FrameSource, entry uintptr) (*TCB, *errors.Tagged) {
	t := &TCB{
		Tid:         allocateTid(),
		Status:      Invalid,
		PageManager: vmm.New(),
		frames:      frames,
	}

	if err := t.allocateKernelStack(); err != nil {
		return nil, err
	}
	if err := t.allocateUserStack(true); err != nil {
		return nil, err
	}

	t.UserEIP = entry
	t.UserESP = UserStackBottomVirt + uintptr(UserStackFrames)*uintptr(mem.PageSize)

	if err := t.setupContext(); err != nil {
		return nil, err
	}

	t.Status = Ready
	return t, nil
}

// NewBootstrap wraps the implicit thread of execution present at boot as
// tid 0. Its stacks are never allocated by this package and are never
// freed by Reap.
func NewBootstrap() *TCB {
	return &TCB{
		Tid:         0,
		Status:      Running,
		PageManager: vmm.New(),
	}
}

func (t *TCB) allocateKernelStack() *errors.Tagged {
	base, err := t.frames.FrameAlloc(KernelStackFrames)
	if err != nil {
		return err
	}
	t.kernelStackBase = base
	t.kernelStackTop = base + uintptr(KernelStackFrames)*uintptr(mem.PageSize)
	mem.Memset(base, 0, mem.Size(KernelStackFrames)*mem.PageSize)
	return nil
}

func (t *TCB) allocateUserStack(zeroInit bool) *errors.Tagged {
	stackSize := mem.Size(UserStackFrames) * mem.PageSize
	userStack, err := t.frames.FrameAlloc(UserStackFrames)
	if err != nil {
		return err
	}
	t.userStackBase = userStack

	if merr := t.PageManager.MapRange(userStack, UserStackBottomVirt, stackSize, true, true); merr != nil {
		return merr
	}
	if zeroInit {
		mem.Memset(userStack, 0, stackSize)
	}
	return nil
}

// hasStackSpace reports whether bytes more can be pushed onto the kernel
// stack without crossing kernelStackBase.
func (t *TCB) hasStackSpace(bytes uintptr) bool {
	return t.kernelStackTop-t.kernelStackBase >= bytes
}

// setupContext preloads the context-switch frame that the scheduler's
// first switch into this thread will consume, decrementing the kernel
// stack pointer by its size.
func (t *TCB) setupContext() *errors.Tagged {
	if !t.hasStackSpace(contextFrameSize) {
		return errStackOverflow
	}
	t.kernelStackTop -= contextFrameSize
	return nil
}

// SetExitCode records the thread's exit code.
func (t *TCB) SetExitCode(code int32) {
	t.ExitCode = code
	t.HasExitCode = true
}

// Reap releases a Dying thread's stacks (except for the bootstrap
// thread's, which are never freed) and transitions it to Invalid. Reap is
// idempotent on an already-Invalid TCB.
func (t *TCB) Reap() {
	if t.Status == Invalid {
		return
	}

	if t.Status != Dying {
		panicFn(errReapNotDying)
	}

	if t.Tid != 0 {
		t.frames.FrameDealloc(t.kernelStackBase)
		t.frames.FrameDealloc(t.userStackBase)
		t.kernelStackTop = 0
		t.kernelStackBase = 0
		t.UserEIP = 0
		t.UserESP = 0
	}

	t.Status = Invalid
}

// CopyStackFrom overwrites t's kernel and user stack contents with src's,
// used to implement fork-style thread duplication.
func (t *TCB) CopyStackFrom(src *TCB) {
	mem.Memcopy(t.kernelStackBase, src.kernelStackBase, mem.Size(KernelStackFrames)*mem.PageSize)
	mem.Memcopy(t.userStackBase, src.userStackBase, mem.Size(UserStackFrames)*mem.PageSize)
}

// KernelStackPointer returns the thread's current kernel stack pointer.
func (t *TCB) KernelStackPointer() uintptr { return t.kernelStackTop }

// KernelStackBase returns the base (lowest address) of the thread's
// kernel stack.
func (t *TCB) KernelStackBase() uintptr { return t.kernelStackBase }
