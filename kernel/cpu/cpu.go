// Package cpu provides the interrupt-masking primitives the core's
// scheduler and allocator build their locking on.
//
// gopher-os declares these as bodyless amd64 function stubs
// (kernel/cpu/cpu_amd64.go) backed by a hand-written cli/sti assembly
// file, since disabling interrupts is inherently a single instruction on
// real hardware. This module never runs against real hardware, so the
// primitives are implemented here as a simulated interrupt-enable flag
// instead of linking an assembly stub — the contract (DisableInterrupts
// is idempotent, EnableInterrupts restores normal operation, Halt stops
// the "CPU") is unchanged.
package cpu

// Level mirrors the two-valued interrupt level used by hold_interrupts in
// the original kernel: interrupts are either fully enabled or fully
// disabled, there is no priority nesting.
type Level bool

const (
	// IntrOn means interrupts are currently enabled.
	IntrOn Level = true
	// IntrOff means interrupts are currently disabled.
	IntrOff Level = false
)

var interruptsEnabled = true

// EnableInterrupts enables interrupt handling.
func EnableInterrupts() {
	interruptsEnabled = true
}

// DisableInterrupts disables interrupt handling.
func DisableInterrupts() {
	interruptsEnabled = false
}

// GetLevel returns the current interrupt level.
func GetLevel() Level {
	if interruptsEnabled {
		return IntrOn
	}
	return IntrOff
}

// SetLevel restores a previously observed interrupt level. It is used by
// the IRQ-masking lock to undo exactly the change it made, regardless of
// what the level was before it acquired the lock.
func SetLevel(level Level) {
	interruptsEnabled = bool(level)
}

// haltFn is swapped out by tests; see kernel/panicking.
var haltFn = func() {
	for {
	}
}

// Halt stops instruction execution. Calls to Halt never return.
func Halt() {
	haltFn()
}
