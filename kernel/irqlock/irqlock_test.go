package irqlock

import (
	"testing"

	"github.com/kidneyos-go/kernelcore/kernel/cpu"
)

func TestAcquireReleaseRestoresLevel(t *testing.T) {
	defer cpu.EnableInterrupts()

	cpu.EnableInterrupts()

	var l Lock
	guard := l.Acquire()
	if cpu.GetLevel() != cpu.IntrOff {
		t.Fatal("expected interrupts to be disabled while held")
	}
	guard.Release()
	if cpu.GetLevel() != cpu.IntrOn {
		t.Fatal("expected interrupts to be restored to their prior level")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	defer cpu.EnableInterrupts()

	cpu.DisableInterrupts()
	var l Lock
	guard := l.Acquire()
	guard.Release()
	cpu.EnableInterrupts()
	guard.Release() // must not clobber the level set above
	if cpu.GetLevel() != cpu.IntrOn {
		t.Fatal("expected second Release to be a no-op")
	}
}
