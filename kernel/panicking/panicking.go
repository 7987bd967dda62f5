// Package panicking implements the core's only path for reporting a
// contract violation: format the error through the allocation-free early
// logger and halt, rather than unwind. Grounded directly on
// gopher-os/kernel/panic.go.
package panicking

import (
	"github.com/kidneyos-go/kernelcore/kernel/cpu"
	"github.com/kidneyos-go/kernelcore/kernel/errors"
	"github.com/kidneyos-go/kernelcore/kernel/kfmt/early"
)

var (
	// haltFn is mocked by tests and is automatically inlined by the
	// compiler when it isn't.
	haltFn = cpu.Halt

	errUnknownCause = &errors.Error{Module: "rt", Message: "unknown cause"}
)

// Panic outputs the supplied error (if not nil) to the early logger and
// halts. Calls to Panic never return. It is the only way the allocator,
// scheduler, and TCB code are allowed to report an unrecoverable
// condition, since a real panic() would itself require an allocation this
// code cannot guarantee is available.
func Panic(e interface{}) {
	var err *errors.Error

	switch t := e.(type) {
	case *errors.Error:
		err = t
	case *errors.Tagged:
		err = t.Error
	case string:
		errUnknownCause.Message = t
		err = errUnknownCause
	case error:
		errUnknownCause.Message = t.Error()
		err = errUnknownCause
	}

	early.Printf("\n-----------------------------------\n")
	if err != nil {
		early.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	early.Printf("*** kernel panic: system halted ***")
	early.Printf("\n-----------------------------------\n")

	haltFn()
}
