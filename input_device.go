// input_device.go - Button-state MMIO window
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
InputDevice exposes the ten guest-visible buttons (spec §4 table,
registers.go's InputID) as one u32 register each: nonzero means pressed.
It is machine-scoped rather than a package-level global (SPEC_FULL.md's
redesign of the original's global input state, spec §9/REDESIGN FLAGS),
constructed once per machine and fed by whatever host frontend is in use
(display_backend_ebiten.go's input poll, or a test driving SetPressed
directly).

SetPressed records a "last pressed since the previous clear" latch in
addition to the live level, supplementing the plain level-sensitive
registers with an edge-triggered view a guest can poll and then
acknowledge by writing any value to InputClear — useful for a guest that
wants "button was pressed during this frame" without sampling every
instruction.
*/

package main

import "sync"

type InputDevice struct {
	mu      sync.Mutex
	level   [numInputs]bool
	latched [numInputs]bool
}

func NewInputDevice() *InputDevice {
	return &InputDevice{}
}

// SetPressed updates the live level of button id and, on a rising edge,
// sets its latch bit.
func (d *InputDevice) SetPressed(id InputID, pressed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pressed && !d.level[id] {
		d.latched[id] = true
	}
	d.level[id] = pressed
}

// MapOnto registers the device's MMIO window with mem.
func (d *InputDevice) MapOnto(mem *MemoryMap) {
	mem.MapDevice(&DeviceRegion{
		Name:       "input",
		Start:      InputBase,
		End:        InputBase + InputSize,
		WidthsMask: 1 << 4,
		OnRead:     d.onRead,
		OnWrite:    d.onWrite,
	})
}

func (d *InputDevice) onRead(addr uint32, width int) (uint32, error) {
	if addr == InputLatched {
		d.mu.Lock()
		defer d.mu.Unlock()
		var mask uint32
		for i := InputID(0); i < numInputs; i++ {
			if d.latched[i] {
				mask |= 1 << uint(i)
			}
		}
		return mask, nil
	}
	off := addr - InputBase
	id := InputID(off / 4)
	if off%4 != 0 || id >= numInputs {
		return 0, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.level[id] {
		return 1, nil
	}
	return 0, nil
}

func (d *InputDevice) onWrite(addr uint32, width int, val uint32) error {
	if addr == InputClear {
		d.mu.Lock()
		d.latched = [numInputs]bool{}
		d.mu.Unlock()
	}
	return nil
}
