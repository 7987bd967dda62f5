// Command kernelcore is a boot-style entrypoint: it wires the allocator
// bootstrap sequence (dummy allocator -> core map -> frame allocator ->
// heap façade) and the scheduler together the way a real bootloader
// handoff would, then starts a couple of demo kernel threads to exercise
// the whole stack end to end.
//
// Grounded on gopher-os/boot.go + kernel/kmain.go: main is the trampoline,
// kmain does the actual initialization and is not expected to return. This
// module never runs against real hardware or a bootloader, so kmain
// allocates its own backing memory region with make() rather than
// receiving kernelStart/kernelEnd from rt0 assembly, and the final halt
// loop stands in for "if Kmain returns, rt0 halts the CPU".
package main

import (
	"unsafe"

	"github.com/kidneyos-go/kernelcore/kernel/cpu"
	"github.com/kidneyos-go/kernelcore/kernel/kfmt/early"
	"github.com/kidneyos-go/kernelcore/kernel/mem"
	"github.com/kidneyos-go/kernelcore/kernel/mem/heap"
	"github.com/kidneyos-go/kernelcore/kernel/panicking"
	"github.com/kidneyos-go/kernelcore/kernel/sched"
	"github.com/kidneyos-go/kernelcore/kernel/thread"
)

// demoRegionFrames sizes the simulated physical memory region kmain
// bootstraps the allocator over: enough for the core map plus two demo
// threads' kernel and user stacks (KernelStackFrames+UserStackFrames each).
const demoRegionFrames = 10112

// demoFrameCount is how many of those frames the frame allocator is told
// to manage, after the core map carves its own frames out of the front of
// the region.
const demoFrameCount = 10000

func main() {
	kmain()
}

// kmain is not expected to return: it ends by halting the CPU.
func kmain() {
	early.Printf("starting kernelcore\n")

	region := make([]byte, uint(mem.PageSize)*demoRegionFrames)
	start := uintptr(unsafe.Pointer(&region[0]))

	h := heap.New(start, start+uintptr(len(region)))
	h.Init(demoFrameCount)

	cpu.DisableInterrupts()
	boot := thread.NewBootstrap()
	s := sched.New(boot, func() bool { return cpu.GetLevel() == cpu.IntrOn })

	pingpong, err := thread.NewFunc(h, 0xC0001000)
	if err != nil {
		panicking.Panic(err)
	}
	other, err := thread.NewFunc(h, 0xC0002000)
	if err != nil {
		panicking.Panic(err)
	}

	s.Push(pingpong)
	s.Push(other)

	for i := 0; i < 4; i++ {
		running := s.Running()
		early.Printf("kernelcore: thread %d running\n", uint32(running.Tid))
		s.YieldAndContinue()
	}

	cpu.Halt()
}
