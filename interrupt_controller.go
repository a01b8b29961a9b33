// interrupt_controller.go - Per-hart pending/enable interrupt lines
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
InterruptController holds one pending/enable mask pair per hart, guarded by
a single mutex the way the Engine guards its coprocessor mailbox registers
in coprocessor_manager.go. Devices call Raise/Clear from their own
goroutines; a hart polls Pending/Enabled once per instruction boundary
(spec §5: "a hart reads them once per instruction boundary").
*/

package main

import "sync"

// InterruptSource names the bit positions of mip/mie for this machine.
// Bit 0 is the per-hart timer; bits 1-2 are the GPU/SPU completion lines
// (asserted only when a command list's write_flag sets the interrupt bit);
// bit 3 is the software inter-hart doorbell.
type InterruptSource uint32

const (
	IntTimer InterruptSource = 1 << 0
	IntGPU   InterruptSource = 1 << 1
	IntSPU   InterruptSource = 1 << 2
	IntSoft  InterruptSource = 1 << 3
)

type InterruptController struct {
	mu      sync.Mutex
	pending [NumHarts]uint32
	enable  [NumHarts]uint32
}

func NewInterruptController() *InterruptController {
	return &InterruptController{}
}

// Raise sets source's bit in hart's pending mask.
func (ic *InterruptController) Raise(hart int, source InterruptSource) {
	ic.mu.Lock()
	ic.pending[hart] |= uint32(source)
	ic.mu.Unlock()
}

// Clear releases source's bit in hart's pending mask.
func (ic *InterruptController) Clear(hart int, source InterruptSource) {
	ic.mu.Lock()
	ic.pending[hart] &^= uint32(source)
	ic.mu.Unlock()
}

// SetEnable replaces hart's mie mask.
func (ic *InterruptController) SetEnable(hart int, mask uint32) {
	ic.mu.Lock()
	ic.enable[hart] = mask
	ic.mu.Unlock()
}

// Enable returns hart's current mie mask.
func (ic *InterruptController) Enable(hart int) uint32 {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.enable[hart]
}

// SetPending replaces hart's mip mask wholesale, used by the CSR write path
// for software-triggered (mip-writable) interrupt sources such as the
// inter-hart doorbell.
func (ic *InterruptController) SetPending(hart int, mask uint32) {
	ic.mu.Lock()
	ic.pending[hart] = mask
	ic.mu.Unlock()
}

// Pending returns hart's current mip mask.
func (ic *InterruptController) Pending(hart int) uint32 {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.pending[hart]
}

// Asserted reports whether hart has at least one enabled pending source,
// i.e. mie & mip != 0, independent of mstatus.MIE (the hart itself gates
// that against global interrupt enable before taking the trap).
func (ic *InterruptController) Asserted(hart int) bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.enable[hart]&ic.pending[hart] != 0
}

// MapOnto registers the controller's MMIO window with mem: one
// pending/enable/clear register block per hart at
// IntCtrlBase + hart*IntCtrlStride, for a guest that wants to read or mask
// its own pending interrupts directly rather than through the CSR file
// (spec §4.3: "also exposed as MMIO for harts 1-3 startup coordination").
func (ic *InterruptController) MapOnto(mem *MemoryMap) {
	for h := 0; h < NumHarts; h++ {
		hart := h
		base := IntCtrlBase + uint32(hart)*IntCtrlStride
		mem.MapDevice(&DeviceRegion{
			Name:       "interrupt controller",
			Start:      base,
			End:        base + IntCtrlStride,
			WidthsMask: 1 << 4,
			OnRead: func(addr uint32, width int) (uint32, error) {
				switch addr - base {
				case intCtrlPending:
					return ic.Pending(hart), nil
				case intCtrlEnable:
					return ic.Enable(hart), nil
				default:
					return 0, nil
				}
			},
			OnWrite: func(addr uint32, width int, val uint32) error {
				switch addr - base {
				case intCtrlEnable:
					ic.SetEnable(hart, val)
				case intCtrlClear:
					ic.Clear(hart, InterruptSource(val))
				}
				return nil
			},
		})
	}
}
