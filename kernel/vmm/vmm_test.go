package vmm

import (
	"testing"

	"github.com/kidneyos-go/kernelcore/kernel/mem"
)

func TestMapRangeThenTranslate(t *testing.T) {
	pm := New()

	if err := pm.MapRange(0x100000, 0x08048000, mem.PageSize, true, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	phys, ok := pm.Translate(0x08048000)
	if !ok {
		t.Fatal("expected the mapped page to translate")
	}
	if phys != 0x100000 {
		t.Fatalf("expected phys 0x100000; got %x", phys)
	}

	phys, ok = pm.Translate(0x08048010)
	if !ok || phys != 0x100010 {
		t.Fatalf("expected an in-page offset to translate correctly; got %x, %v", phys, ok)
	}
}

func TestTranslateUnmappedFails(t *testing.T) {
	pm := New()
	if _, ok := pm.Translate(0x1000); ok {
		t.Fatal("expected an unmapped address to fail translation")
	}
}

func TestMapRangeRejectsOverlap(t *testing.T) {
	pm := New()

	if err := pm.MapRange(0x100000, 0x08048000, mem.PageSize*2, true, false); err != nil {
		t.Fatal(err)
	}

	if err := pm.MapRange(0x200000, 0x08049000, mem.PageSize, true, false); err == nil {
		t.Fatal("expected an overlapping mapping to be rejected")
	}
}

func TestUnmapRemovesMapping(t *testing.T) {
	pm := New()
	if err := pm.MapRange(0x100000, 0x08048000, mem.PageSize, true, false); err != nil {
		t.Fatal(err)
	}

	pm.Unmap(0x08048000)

	if _, ok := pm.Translate(0x08048000); ok {
		t.Fatal("expected the unmapped page to no longer translate")
	}
}

func TestDisjointMappingsBothTranslate(t *testing.T) {
	pm := New()
	if err := pm.MapRange(0x100000, 0x1000, mem.PageSize, false, false); err != nil {
		t.Fatal(err)
	}
	if err := pm.MapRange(0x200000, 0x5000, mem.PageSize, true, true); err != nil {
		t.Fatal(err)
	}

	if phys, ok := pm.Translate(0x1000); !ok || phys != 0x100000 {
		t.Fatalf("first mapping broken: %x, %v", phys, ok)
	}
	if phys, ok := pm.Translate(0x5000); !ok || phys != 0x200000 {
		t.Fatalf("second mapping broken: %x, %v", phys, ok)
	}
}
