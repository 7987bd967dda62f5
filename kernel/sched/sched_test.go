package sched

import (
	"testing"
	"unsafe"

	"github.com/kidneyos-go/kernelcore/kernel/errors"
	"github.com/kidneyos-go/kernelcore/kernel/mem"
	"github.com/kidneyos-go/kernelcore/kernel/thread"
)

func disabled() bool { return false }
func enabled() bool  { return true }

// fakeFrames is a thread.FrameSource good enough to construct TCBs for
// scheduler tests. NewFunc zero-fills the stacks it allocates, so every
// allocation is backed by a real Go-allocated byte slice.
type fakeFrames struct{ live [][]byte }

func newFakeFrames() *fakeFrames { return &fakeFrames{} }

func (f *fakeFrames) FrameAlloc(n uint) (uintptr, *errors.Tagged) {
	buf := make([]byte, uint(mem.PageSize)*n)
	f.live = append(f.live, buf)
	return uintptr(unsafe.Pointer(&buf[0])), nil
}

func (f *fakeFrames) FrameDealloc(ptr uintptr) {}

func newReadyThread() *thread.TCB {
	tcb, err := thread.NewFunc(newFakeFrames(), 0x1000)
	if err != nil {
		panic(err)
	}
	return tcb
}

func TestCreateSchedulerRequiresInterruptsDisabled(t *testing.T) {
	boot := thread.NewBootstrap()

	panicked := false
	old := panicFn
	panicFn = func(e interface{}) { panicked = true }
	defer func() { panicFn = old }()

	New(boot, enabled)
	if !panicked {
		t.Fatal("expected New to report a fatal error when interrupts are enabled")
	}
}

func TestPushPopFIFOOrder(t *testing.T) {
	boot := thread.NewBootstrap()
	s := New(boot, disabled)

	a := newReadyThread()
	b := newReadyThread()

	s.Push(a)
	s.Push(b)

	got, ok := s.Pop()
	if !ok || got != a {
		t.Fatal("expected FIFO order to return a first")
	}
	got, ok = s.Pop()
	if !ok || got != b {
		t.Fatal("expected FIFO order to return b second")
	}
	if _, ok := s.Pop(); ok {
		t.Fatal("expected the queue to be empty")
	}
}

func TestYieldAndContinueRequeuesOutgoing(t *testing.T) {
	boot := thread.NewBootstrap()
	s := New(boot, disabled)

	b := newReadyThread()
	s.Push(b)

	s.YieldAndContinue()

	if s.Running() != b {
		t.Fatalf("expected b to become the running thread")
	}

	next, ok := s.Pop()
	if !ok || next != boot {
		t.Fatal("expected the outgoing bootstrap thread to be requeued as Ready")
	}
	if boot.Status != thread.Ready {
		t.Fatalf("expected outgoing thread status Ready; got %v", boot.Status)
	}
}

func TestYieldAndDieDoesNotRequeueOutgoing(t *testing.T) {
	boot := thread.NewBootstrap()
	s := New(boot, disabled)

	b := newReadyThread()
	s.Push(b)

	reachedDieLoop := false
	old := dieLoopFn
	dieLoopFn = func() { reachedDieLoop = true }
	defer func() { dieLoopFn = old }()

	s.YieldAndDie()

	if _, ok := s.Pop(); ok {
		t.Fatal("expected the dying thread not to be requeued")
	}
	if !reachedDieLoop {
		t.Fatal("expected YieldAndDie to reach its never-returns tail")
	}
}

func TestBlockedThreadIsRequeuedDuringPop(t *testing.T) {
	boot := thread.NewBootstrap()
	s := New(boot, disabled)

	blocked := newReadyThread()
	blocked.Status = thread.Blocked
	s.ready = append(s.ready, blocked)

	ready := newReadyThread()
	s.Push(ready)

	s.YieldAndContinue()

	if s.Running() != ready {
		t.Fatalf("expected the non-blocked thread to be selected")
	}

	found, ok := s.GetMut(blocked.Tid)
	if !ok || found != blocked {
		t.Fatal("expected the blocked thread to still be found on the queue")
	}
}

func TestThreadWakeupFlipsStatusWithoutReordering(t *testing.T) {
	boot := thread.NewBootstrap()
	s := New(boot, disabled)

	sleeper := newReadyThread()
	sleeper.Status = thread.Blocked
	s.ready = append(s.ready, sleeper)

	s.ThreadWakeup(sleeper.Tid)

	if sleeper.Status != thread.Ready {
		t.Fatalf("expected wakeup to set status Ready; got %v", sleeper.Status)
	}

	got, ok := s.Pop()
	if !ok || got != sleeper {
		t.Fatal("expected the woken thread to still be at the head of the queue")
	}
}
