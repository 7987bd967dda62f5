package collab

import "testing"

type fakeDevice struct {
	sectors map[Sector][]byte
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{sectors: make(map[Sector][]byte)}
}

func (d *fakeDevice) Read(sector Sector, buf []byte) {
	copy(buf, d.sectors[sector])
}

func (d *fakeDevice) Write(sector Sector, buf []byte) {
	stored := make([]byte, BlockSectorSize)
	copy(stored, buf)
	d.sectors[sector] = stored
}

func TestRegisterBlockReturnsSequentialIDs(t *testing.T) {
	m := NewBlockManager()

	a := m.RegisterBlock(BlockRaw, "disk0", 1024, newFakeDevice())
	b := m.RegisterBlock(BlockTempFS, "tempfs0", 1024, newFakeDevice())

	if a != 0 || b != 1 {
		t.Fatalf("expected sequential IDs 0,1; got %d,%d", a, b)
	}
}

func TestByIDRoundTripsRegisteredDevice(t *testing.T) {
	m := NewBlockManager()
	dev := newFakeDevice()
	id := m.RegisterBlock(BlockRaw, "disk0", 1024, dev)

	got, ok := m.ByID(id)
	if !ok || got != dev {
		t.Fatal("expected ByID to return the registered device")
	}
}

func TestByIDRejectsUnknownID(t *testing.T) {
	m := NewBlockManager()
	if _, ok := m.ByID(0); ok {
		t.Fatal("expected ByID to fail on an empty registry")
	}
}

func TestFakeDeviceReadWriteRoundTrip(t *testing.T) {
	dev := newFakeDevice()
	want := make([]byte, BlockSectorSize)
	want[0] = 0x42

	dev.Write(3, want)

	got := make([]byte, BlockSectorSize)
	dev.Read(3, got)

	if got[0] != 0x42 {
		t.Fatalf("expected sector 3 byte 0 = 0x42; got %#x", got[0])
	}
}
