// memory_map.go - Flat address space dispatch
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
MemoryMap is the machine's single flat 32-bit address space: a ROM image,
a RAM block, and a handful of MMIO device windows registered at
construction time via MapDevice. It mirrors the shape of the Engine's
SystemBus in memory_bus.go — a byte slice backing store plus a table of
registered IORegions consulted before falling back to RAM — generalised to
three access widths and a fixed, immutable mapping for the machine's
lifetime (spec §3 invariant: "the mapping is immutable for a machine's
lifetime").

No access here ever mutates guest-visible state before it is known to
succeed: every Read/Write validates address, alignment and width first and
returns a *Fault with zero side effects on failure.
*/

package main

import (
	"encoding/binary"
	"sort"
	"sync"
)

// DeviceRegion is an MMIO window registered with a MemoryMap. OnRead/OnWrite
// are invoked with the width in bytes (1, 2 or 4); a nil OnWrite/OnRead
// means the window does not support that direction.
type DeviceRegion struct {
	Name         string
	Start, End   uint32 // [Start, End)
	WidthsMask   int    // bitmask of 1<<1, 1<<2, 1<<4; 0 means all widths ok
	OnRead       func(addr uint32, width int) (uint32, error)
	OnWrite      func(addr uint32, width int, val uint32) error
}

func (r *DeviceRegion) widthOK(width int) bool {
	if r.WidthsMask == 0 {
		return true
	}
	return r.WidthsMask&(1<<uint(width)) != 0
}

// MemoryMap is the machine's address space dispatcher.
type MemoryMap struct {
	mu      sync.RWMutex
	rom     []byte
	ram     []byte
	regions []*DeviceRegion // sorted by Start, immutable after construction
}

// NewMemoryMap allocates RAM of the fixed machine size and loads rom (which
// must fit within the space between RomStart and RamStart) as the initial
// contents of the ROM region.
func NewMemoryMap(rom []byte) (*MemoryMap, error) {
	if uint32(len(rom)) > RamStart-RomStart {
		return nil, fatalf("memory_map", "rom image of %d bytes exceeds ROM window of %d bytes", len(rom), RamStart-RomStart)
	}
	m := &MemoryMap{
		rom: make([]byte, RamStart-RomStart),
		ram: make([]byte, RamSize),
	}
	copy(m.rom, rom)
	return m, nil
}

// MapDevice registers a device MMIO window. It must be called before the
// machine starts running harts; the region table is read-only thereafter.
func (m *MemoryMap) MapDevice(r *DeviceRegion) {
	m.regions = append(m.regions, r)
	sort.Slice(m.regions, func(i, j int) bool { return m.regions[i].Start < m.regions[j].Start })
}

func (m *MemoryMap) findRegion(addr uint32) *DeviceRegion {
	for _, r := range m.regions {
		if addr >= r.Start && addr < r.End {
			return r
		}
	}
	return nil
}

func alignmentOK(addr uint32, width int) bool {
	switch width {
	case 1:
		return true
	case 2:
		return addr%2 == 0
	case 4:
		return addr%4 == 0
	default:
		return false
	}
}

// Read reads width bytes (1, 2 or 4) at addr and returns the value
// zero-extended into a uint32.
func (m *MemoryMap) Read(addr uint32, width int) (uint32, error) {
	if !alignmentOK(addr, width) {
		return 0, newFault(FaultInvalidAlignment, addr, width, "address is not width-aligned")
	}

	if r := m.findRegion(addr); r != nil {
		if !r.widthOK(width) {
			return 0, newFault(FaultWidthNotSupported, addr, width, r.Name+" does not support this access width")
		}
		if r.OnRead == nil {
			return 0, newFault(FaultWidthNotSupported, addr, width, r.Name+" is not readable")
		}
		return r.OnRead(addr, width)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if IsRAMAddress(addr) && inRange(addr+uint32(width)-1, RamStart, RamSize) {
		off := addr - RamStart
		return readLE(m.ram[off:off+uint32(width)], width), nil
	}
	if addr >= RomStart && addr < RamStart && addr+uint32(width) <= RamStart {
		off := addr - RomStart
		return readLE(m.rom[off:off+uint32(width)], width), nil
	}
	return 0, newFault(FaultInvalidAddress, addr, width, "no region maps this address")
}

// Write writes the low width bytes of val to addr.
func (m *MemoryMap) Write(addr uint32, width int, val uint32) error {
	if !alignmentOK(addr, width) {
		return newFault(FaultInvalidAlignment, addr, width, "address is not width-aligned")
	}

	if r := m.findRegion(addr); r != nil {
		if !r.widthOK(width) {
			return newFault(FaultWidthNotSupported, addr, width, r.Name+" does not support this access width")
		}
		if r.OnWrite == nil {
			return newFault(FaultWidthNotSupported, addr, width, r.Name+" is not writable")
		}
		return r.OnWrite(addr, width, val)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if IsRAMAddress(addr) && inRange(addr+uint32(width)-1, RamStart, RamSize) {
		off := addr - RamStart
		writeLE(m.ram[off:off+uint32(width)], width, val)
		return nil
	}
	return newFault(FaultInvalidAddress, addr, width, "no region maps this address, or it is read-only ROM")
}

func (m *MemoryMap) Read8(addr uint32) (uint8, error) {
	v, err := m.Read(addr, 1)
	return uint8(v), err
}
func (m *MemoryMap) Read16(addr uint32) (uint16, error) {
	v, err := m.Read(addr, 2)
	return uint16(v), err
}
func (m *MemoryMap) Read32(addr uint32) (uint32, error) { return m.Read(addr, 4) }

func (m *MemoryMap) Write8(addr uint32, val uint8) error  { return m.Write(addr, 1, uint32(val)) }
func (m *MemoryMap) Write16(addr uint32, val uint16) error { return m.Write(addr, 2, uint32(val)) }
func (m *MemoryMap) Write32(addr uint32, val uint32) error { return m.Write(addr, 4, val) }

// ReadBytes copies length raw bytes starting at addr, honouring only the
// ROM/RAM backing stores (used by the command-list engine to read upload
// sources and command payloads directly out of guest memory). It does not
// go through device regions: secondary command-list pointers always target
// RAM per spec §3 ("producer guarantees the buffer ... remain valid").
func (m *MemoryMap) ReadBytes(addr uint32, length uint32) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if length == 0 {
		return nil, nil
	}
	if IsRAMAddress(addr) && inRange(addr+length-1, RamStart, RamSize) {
		off := addr - RamStart
		out := make([]byte, length)
		copy(out, m.ram[off:off+length])
		return out, nil
	}
	if addr >= RomStart && addr < RamStart && addr+length <= RamStart {
		off := addr - RomStart
		out := make([]byte, length)
		copy(out, m.rom[off:off+length])
		return out, nil
	}
	return nil, newFault(FaultInvalidAddress, addr, int(length), "read span is not wholly within RAM or ROM")
}

// WriteBytes writes raw bytes directly into RAM, used by the GPU executor
// when materialising texture/buffer contents that are not naturally
// width-aligned uint32 stores.
func (m *MemoryMap) WriteBytes(addr uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	length := uint32(len(data))
	if length == 0 {
		return nil
	}
	if IsRAMAddress(addr) && inRange(addr+length-1, RamStart, RamSize) {
		off := addr - RamStart
		copy(m.ram[off:off+length], data)
		return nil
	}
	return newFault(FaultInvalidAddress, addr, int(length), "write span is not wholly within RAM")
}

func readLE(b []byte, width int) uint32 {
	switch width {
	case 1:
		return uint32(b[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(b))
	default:
		return binary.LittleEndian.Uint32(b)
	}
}

func writeLE(b []byte, width int, val uint32) {
	switch width {
	case 1:
		b[0] = byte(val)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(val))
	default:
		binary.LittleEndian.PutUint32(b, val)
	}
}
