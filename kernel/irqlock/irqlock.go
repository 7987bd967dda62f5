// Package irqlock implements the IRQ-masking lock used by every shared
// mutation of core kernel state (the scheduler's ready queue, the heap
// façade's counters). Locking saves the current interrupt level and
// disables interrupts; unlocking restores whatever level was saved. It is
// not re-entrant and is distinct from a sleep-capable mutex: nothing that
// holds it may block on I/O.
//
// Grounded on original_source's hold_interrupts(IntrLevel::IntrOff) RAII
// guard (kernel/src/threading/scheduling/mod.rs); no teacher repo in the
// pack needed this type because gopher-os bootstraps the stock Go
// scheduler instead of writing its own cooperative one.
package irqlock

import "github.com/kidneyos-go/kernelcore/kernel/cpu"

// Lock is a mutex that disables interrupts for the duration it is held.
// The zero value is ready to use.
type Lock struct{}

// Guard is returned by Lock.Acquire. Its sole purpose is to restore the
// interrupt level that was active before Acquire was called; it must be
// released exactly once, typically via defer.
type Guard struct {
	previous cpu.Level
	released bool
}

// Acquire disables interrupts and returns a Guard that will restore the
// previously active interrupt level when Release is called.
func (*Lock) Acquire() *Guard {
	previous := cpu.GetLevel()
	cpu.DisableInterrupts()
	return &Guard{previous: previous}
}

// Release restores the interrupt level saved by Acquire. It is safe to
// call at most once per Guard; a second call is a no-op so that deferred
// Release calls compose safely with an early explicit Release.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	cpu.SetLevel(g.previous)
}
