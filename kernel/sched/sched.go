// Package sched implements the FIFO scheduler: a ready queue of TCBs, a
// handle to the running TCB, and the three yield variants that hand the
// CPU to the next runnable thread.
//
// Grounded on original_source/kernel/src/threading/scheduling/mod.rs
// (create_scheduler's interrupts-disabled precondition, the shared
// scheduler_yield routine parameterized by outgoing status, the
// pop-and-requeue-if-blocked loop) and thread_sleep.rs (thread_sleep as
// exactly yield_and_block, thread_wakeup's get_mut-and-flip-to-Ready).
// No Go repo in the pack implements a hand-rolled scheduler for the same
// reason none implements a hand-rolled TCB; doc-comment density and
// locking idiom (irqlock.Lock guards, released before any call that might
// itself want the lock) follow gopher-os's irq package usage throughout.
package sched

import (
	"github.com/kidneyos-go/kernelcore/kernel/errors"
	"github.com/kidneyos-go/kernelcore/kernel/irqlock"
	"github.com/kidneyos-go/kernelcore/kernel/panicking"
	"github.com/kidneyos-go/kernelcore/kernel/thread"
)

// contextSwitchFn stands in for the assembly context-switch primitive
// that saves the outgoing thread's callee-saved registers on its kernel
// stack and loads the incoming thread's. There is no hardware to switch
// here; the hook exists so a future backend can be wired in without
// changing the scheduling logic above it. Mocked by tests to observe
// which pair of threads a yield selected.
var contextSwitchFn = func(outgoing, incoming *thread.TCB) {}

// panicFn is swapped out by tests so a fatal path can be observed without
// actually halting.
var panicFn = panicking.Panic

// dieLoopFn represents the "never returns" tail of YieldAndDie: once the
// scheduler has switched away from a Dying thread (or found nothing else
// to run), that thread must never execute another instruction. There is
// no real instruction pointer to strand here, so the default spins
// forever; tests swap it out to observe that a yield-and-die reached this
// point without hanging the test process.
var dieLoopFn = func() {
	for {
	}
}

var (
	errNotReady              = errors.New(errors.KindInvalidState, "sched", "push requires a thread with status Ready")
	errInterruptsNotDisabled = errors.New(errors.KindInvalidState, "sched", "create_scheduler requires interrupts to already be disabled")
)

// Scheduler owns the FIFO ready queue and a reference to the running
// thread. The zero value is not valid; construct one with New.
type Scheduler struct {
	lock    irqlock.Lock
	ready   []*thread.TCB
	running *thread.TCB
}

// IntrLevelFn reports whether interrupts are currently enabled; passed in
// by the caller so this package does not need to import cpu directly,
// keeping the scheduler testable without a real interrupt flag.
type IntrLevelFn func() bool

// New constructs a Scheduler with current as the already-running thread.
// Interrupts must be disabled by the caller; create_scheduler is called
// exactly once during boot, matching original_source's assertion.
func New(current *thread.TCB, interruptsEnabled IntrLevelFn) *Scheduler {
	if interruptsEnabled() {
		panicFn(errInterruptsNotDisabled)
	}
	return &Scheduler{running: current}
}

// Push enqueues tcb at the tail of the ready queue. tcb must have
// status=Ready.
func (s *Scheduler) Push(tcb *thread.TCB) {
	guard := s.lock.Acquire()
	defer guard.Release()
	s.pushLocked(tcb)
}

func (s *Scheduler) pushLocked(tcb *thread.TCB) {
	if tcb.Status != thread.Ready && tcb.Status != thread.Blocked {
		panicFn(errNotReady)
	}
	s.ready = append(s.ready, tcb)
}

// Pop dequeues and returns the TCB at the head of the ready queue.
func (s *Scheduler) Pop() (*thread.TCB, bool) {
	guard := s.lock.Acquire()
	defer guard.Release()
	return s.popLocked()
}

func (s *Scheduler) popLocked() (*thread.TCB, bool) {
	if len(s.ready) == 0 {
		return nil, false
	}
	tcb := s.ready[0]
	s.ready = s.ready[1:]
	return tcb, true
}

// GetMut performs a linear lookup by TID across the queued TCBs, the same
// lookup ThreadWakeup performs to locate a sleeping thread.
func (s *Scheduler) GetMut(tid thread.Tid) (*thread.TCB, bool) {
	guard := s.lock.Acquire()
	defer guard.Release()
	for _, tcb := range s.ready {
		if tcb.Tid == tid {
			return tcb, true
		}
	}
	return nil, false
}

// Running returns the currently running TCB.
func (s *Scheduler) Running() *thread.TCB {
	return s.running
}

// yield is the shared routine behind all three yield variants. It pops
// ready (non-blocked) threads until it finds one to switch to, requeuing
// any transiently blocked thread it encounters along the way. The
// outgoing thread is assigned outgoingStatus and, unless that status is
// Dying, requeued under the same lock before the context-switch primitive
// is invoked — this scheduler never leaves a live, reschedulable thread
// off the ready queue, an ordering spec.md leaves implementation-defined.
// If the queue empties without finding a runnable thread, the outgoing
// thread keeps running (idle-halt is a no-op here: there is no interrupt
// source to busy-check against).
func (s *Scheduler) yield(outgoingStatus thread.Status) {
	guard := s.lock.Acquire()

	for {
		next, ok := s.popLocked()
		if !ok {
			guard.Release()
			return
		}

		if next.Status == thread.Blocked {
			s.pushLocked(next)
			continue
		}

		outgoing := s.running
		outgoing.Status = outgoingStatus
		if outgoingStatus != thread.Dying {
			s.pushLocked(outgoing)
		}

		s.running = next
		next.Status = thread.Running

		guard.Release()
		contextSwitchFn(outgoing, next)
		return
	}
}

// YieldAndContinue relinquishes the CPU and marks the current thread
// Ready, to be rescheduled in its turn.
func (s *Scheduler) YieldAndContinue() {
	s.yield(thread.Ready)
}

// YieldAndBlock relinquishes the CPU and marks the current thread
// Blocked; it remains on the ready queue (transiently) until a wakeup
// flips its status back to Ready.
func (s *Scheduler) YieldAndBlock() {
	s.yield(thread.Blocked)
}

// YieldAndDie relinquishes the CPU and marks the current thread Dying.
// yield itself is an ordinary function call and so returns here regardless
// of which thread was switched to, but a Dying thread must never execute
// another instruction past this point; dieLoopFn stands in for that by
// spinning forever, the same role cpu.Halt plays for other fatal paths.
func (s *Scheduler) YieldAndDie() {
	s.yield(thread.Dying)
	dieLoopFn()
}

// ThreadSleep is exactly YieldAndBlock.
func (s *Scheduler) ThreadSleep() {
	s.YieldAndBlock()
}

// ThreadWakeup locates the TCB with the given TID among the queued
// threads and sets its status to Ready. It does not reorder the queue;
// the next yield's pop loop will select it in its turn.
func (s *Scheduler) ThreadWakeup(tid thread.Tid) {
	guard := s.lock.Acquire()
	defer guard.Release()

	for _, tcb := range s.ready {
		if tcb.Tid == tid {
			tcb.Status = thread.Ready
			return
		}
	}
}
