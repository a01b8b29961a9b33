// registers.go - Address-space map for the RVFM machine
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
Package-level address map, grouped and documented the way the Engine
documents its own I/O map in registers.go: one table of base addresses and
a handful of small helpers for classifying an address without going
through the full MemoryMap dispatch.

	Address                          Purpose
	-------                          -------
	RomStart                         ROM image (also reset PC for hart 0)
	RamStart .. RamStart+RamSize     general RAM
	DebugBase (0x8000_0000)          debug device registers (u32 only)
	IntCtrlBase (0x8001_0000)        interrupt controller, per-hart window
	HartStartBase (0x8002_0000)      hart start-trigger registers, +4 per hart
	HartClockBase (0x8003_0000)      hart clock tick/compare registers
	GPUBase (0x0800_4000)            GPU MMIO window (queues at +0x10)
	SPUBase (0x0800_8000)            SPU MMIO window (queues at +0x10)
	InputBase (0x8005_0000)          input button states, +4 per button;
	                                 +0x28 latch mask (read-only), +0x2C
	                                 clear trigger (write-only)
*/

package main

const (
	RomStart = uint32(0x0000_0000)

	RamStart = uint32(0x0010_0000)
	RamSize  = uint32(4 * 1024 * 1024)

	DebugBase = uint32(0x8000_0000)
	DebugSize = uint32(0x20)

	DebugRegMessagePtr    = DebugBase + 0x00
	DebugRegLength        = DebugBase + 0x04
	DebugRegStatus        = DebugBase + 0x08
	DebugRegWriteTrigger  = DebugBase + 0x0C
	DebugRegFlushTrigger  = DebugBase + 0x10

	IntCtrlBase     = uint32(0x8001_0000)
	IntCtrlSize     = uint32(0x100)
	IntCtrlStride   = uint32(0x10)
	intCtrlPending  = 0x00
	intCtrlEnable   = 0x04
	intCtrlClear    = 0x08

	HartStartBase = uint32(0x8002_0000)
	HartStartSize = uint32(NumHarts * 4)

	HartClockBase   = uint32(0x8003_0000)
	HartClockSize   = uint32(NumHarts * HartClockStride)
	HartClockStride = uint32(0x10)
	hartClockTickLo = 0x00
	hartClockTickHi = 0x04
	hartClockCmpLo  = 0x08
	hartClockCmpHi  = 0x0C

	GPUBase       = uint32(0x0800_4000)
	GPUWindowSize = uint32(0x1000)
	GPUQueueBase  = GPUBase + 0x10
	NumGPUQueues  = 4

	SPUBase       = uint32(0x0800_8000)
	SPUWindowSize = uint32(0x1000)
	SPUQueueBase  = SPUBase + 0x10
	NumSPUQueues  = 4

	InputBase    = uint32(0x8005_0000)
	InputSize    = uint32(0x30)
	InputLatched = InputBase + 0x28
	InputClear   = InputBase + 0x2C

	NumHarts = 4
)

// InputID names the ten guest-visible button lines, offset by 4 bytes each
// starting at InputBase, matching the original's input.rs ordering.
type InputID int

const (
	InputUp InputID = iota
	InputDown
	InputLeft
	InputRight
	InputA
	InputB
	InputX
	InputY
	InputStart
	InputSelect
	numInputs
)

func (b InputID) offset() uint32 { return uint32(b) * 4 }

// inRange reports whether addr falls in [base, base+size).
func inRange(addr, base, size uint32) bool {
	return addr >= base && addr < base+size
}

// IsDeviceAddress reports whether addr falls in any MMIO device window,
// as opposed to ROM or RAM.
func IsDeviceAddress(addr uint32) bool {
	return inRange(addr, DebugBase, DebugSize) ||
		inRange(addr, IntCtrlBase, IntCtrlSize) ||
		inRange(addr, HartStartBase, HartStartSize) ||
		inRange(addr, HartClockBase, HartClockSize) ||
		inRange(addr, GPUBase, GPUWindowSize) ||
		inRange(addr, SPUBase, SPUWindowSize) ||
		inRange(addr, InputBase, InputSize)
}

// IsRAMAddress reports whether addr falls within the RAM region.
func IsRAMAddress(addr uint32) bool {
	return inRange(addr, RamStart, RamSize)
}
