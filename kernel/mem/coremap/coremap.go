// Package coremap implements the per-frame allocation metadata that the
// frame allocator scans: one CoreMapEntry per managed physical frame,
// recording whether it is allocated and, for the first frame of a run, how
// many contiguous frames the run spans.
//
// Grounded on gopher-os/kernel/mem/pmm/allocator/bitmap_allocator.go's
// framePool/freeBitmap scanning idiom (first-fit over a flat array,
// markFrame-style mutation), reshaped from a bitmap into explicit
// run-length entries because spec.md requires recovering a run's exact
// length on free, which a bare free/allocated bit cannot do on its own.
package coremap

import "github.com/kidneyos-go/kernelcore/kernel/errors"

var errOutOfMemory = errors.New(errors.KindOutOfMemory, "core_map", "out of memory")

// Entry is the per-frame metadata tracked by CoreMap. RunLength is only
// meaningful on the first frame of an allocated run; it is left at its
// zero value on every other frame in the run and on free frames.
type Entry struct {
	Allocated bool
	RunLength uint
}

// CoreMap is a boxed slice of Entry indexed by frame number within managed
// memory (frame 0 of the CoreMap is the first managed frame, not
// necessarily physical frame 0).
type CoreMap struct {
	entries []Entry
}

// New wraps an already-allocated entries slice. The slice is expected to
// come from the dummy allocator's very first allocation, matching
// original_source's "Creating Coremap Entries for Frame Allocator" step.
func New(entries []Entry) *CoreMap {
	return &CoreMap{entries: entries}
}

// Len returns the number of frames this CoreMap tracks.
func (c *CoreMap) Len() int { return len(c.entries) }

// MarkAllocated flags the n frames starting at start as allocated and
// records the run length on the first frame of the run.
func (c *CoreMap) MarkAllocated(start, n uint) {
	c.entries[start].Allocated = true
	c.entries[start].RunLength = n
	for i := start + 1; i < start+n; i++ {
		c.entries[i].Allocated = true
		c.entries[i].RunLength = 0
	}
}

// MarkFree reads the run length recorded at start, clears the allocated
// flag across the run, and returns the number of frames freed.
func (c *CoreMap) MarkFree(start uint) uint {
	n := c.entries[start].RunLength
	for i := start; i < start+n; i++ {
		c.entries[i].Allocated = false
		c.entries[i].RunLength = 0
	}
	return n
}

// FindFreeRun performs a linear first-fit scan for n consecutive free
// entries and returns the index of the first entry in the run.
func (c *CoreMap) FindFreeRun(n uint) (uint, *errors.Tagged) {
	if n == 0 {
		return 0, errOutOfMemory
	}

	var runStart, runLen uint
	inRun := false
	for i, e := range c.entries {
		if !e.Allocated {
			if !inRun {
				runStart = uint(i)
				runLen = 0
				inRun = true
			}
			runLen++
			if runLen == n {
				return runStart, nil
			}
			continue
		}
		inRun = false
	}

	return 0, errOutOfMemory
}

// At returns a copy of the entry at the given frame index, for diagnostics
// and tests.
func (c *CoreMap) At(index uint) Entry { return c.entries[index] }
