// hart_clock.go - Per-hart programmable interval timer
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
HartClock gives each hart a free-running 64-bit tick counter and a 64-bit
compare register. Once tick >= compare the timer source is latched pending
on the InterruptController; a guest write to the compare register clears
that hart's pending timer bit (spec §4.4), matching the level-sensitive
design of interrupt_controller.go.

Ticks are advanced externally by whatever drives the machine's notion of
time (the hart's own step loop, in this implementation, once per Step of a
running or single-stepping hart, before the interrupt and breakpoint checks,
so a Step that takes an interrupt or halts on a breakpoint also ticks)
rather than by a dedicated goroutine, since spec §4.4 does not
mandate wall-clock timing and the Engine itself ticks its own timers from
the CPU's Execute loop rather than a separate ticker.
*/

package main

import "sync"

type HartClock struct {
	mu      sync.Mutex
	ic      *InterruptController
	ticks   [NumHarts]uint64
	compare [NumHarts]uint64
}

func NewHartClock(ic *InterruptController) *HartClock {
	return &HartClock{ic: ic}
}

// Tick advances hart's counter by one and latches the timer interrupt if
// the counter has reached or passed the compare value.
func (c *HartClock) Tick(hart int) {
	c.mu.Lock()
	c.ticks[hart]++
	fire := c.ticks[hart] >= c.compare[hart]
	c.mu.Unlock()
	if fire {
		c.ic.Raise(hart, IntTimer)
	}
}

func (c *HartClock) readTickLo(hart int) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint32(c.ticks[hart])
}

func (c *HartClock) readTickHi(hart int) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint32(c.ticks[hart] >> 32)
}

func (c *HartClock) readCompareLo(hart int) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint32(c.compare[hart])
}

func (c *HartClock) readCompareHi(hart int) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint32(c.compare[hart] >> 32)
}

func (c *HartClock) writeCompareLo(hart int, val uint32) {
	c.mu.Lock()
	c.compare[hart] = c.compare[hart]&0xFFFFFFFF00000000 | uint64(val)
	c.mu.Unlock()
	c.ic.Clear(hart, IntTimer)
}

func (c *HartClock) writeCompareHi(hart int, val uint32) {
	c.mu.Lock()
	c.compare[hart] = c.compare[hart]&0x00000000FFFFFFFF | uint64(val)<<32
	c.mu.Unlock()
	c.ic.Clear(hart, IntTimer)
}

// MapOnto registers this clock's MMIO window with mem, one register block
// per hart at HartClockBase + hart*HartClockStride.
func (c *HartClock) MapOnto(mem *MemoryMap) {
	for h := 0; h < NumHarts; h++ {
		hart := h
		base := HartClockBase + uint32(hart)*HartClockStride
		mem.MapDevice(&DeviceRegion{
			Name:       "hart clock",
			Start:      base,
			End:        base + HartClockStride,
			WidthsMask: 1 << 4,
			OnRead: func(addr uint32, width int) (uint32, error) {
				switch addr - base {
				case hartClockTickLo:
					return c.readTickLo(hart), nil
				case hartClockTickHi:
					return c.readTickHi(hart), nil
				case hartClockCmpLo:
					return c.readCompareLo(hart), nil
				case hartClockCmpHi:
					return c.readCompareHi(hart), nil
				default:
					return 0, nil
				}
			},
			OnWrite: func(addr uint32, width int, val uint32) error {
				switch addr - base {
				case hartClockCmpLo:
					c.writeCompareLo(hart, val)
				case hartClockCmpHi:
					c.writeCompareHi(hart, val)
				}
				return nil
			},
		})
	}
}
