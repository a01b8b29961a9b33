package main

import "testing"

func TestInputDeviceLevelAndLatch(t *testing.T) {
	mem, err := NewMemoryMap(nil)
	if err != nil {
		t.Fatalf("NewMemoryMap: %v", err)
	}
	d := NewInputDevice()
	d.MapOnto(mem)

	v, _ := mem.Read32(InputBase + InputA.offset())
	if v != 0 {
		t.Fatalf("A should read 0 before press, got %d", v)
	}

	d.SetPressed(InputA, true)
	v, _ = mem.Read32(InputBase + InputA.offset())
	if v != 1 {
		t.Fatalf("A should read 1 while pressed, got %d", v)
	}

	latched, _ := mem.Read32(InputLatched)
	if latched&(1<<uint(InputA)) == 0 {
		t.Fatal("latch bit for A should be set after a rising edge")
	}

	mem.Write32(InputClear, 1)
	latched, _ = mem.Read32(InputLatched)
	if latched != 0 {
		t.Fatalf("latch should clear after a write to InputClear, got %#x", latched)
	}

	d.SetPressed(InputA, false)
	v, _ = mem.Read32(InputBase + InputA.offset())
	if v != 0 {
		t.Fatalf("A should read 0 after release, got %d", v)
	}
}
