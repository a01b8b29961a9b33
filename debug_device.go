// debug_device.go - Guest-to-host diagnostic message device
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
DebugDevice implements spec §4 table's debug device: five u32 registers
(message_ptr, length, status, write_trigger, flush_trigger). The guest
stores a pointer and length, then a store to write_trigger makes the
device read that many bytes out of guest memory and hand them to out as a
single line; flush_trigger flushes out if it is buffered. This is the same
message-pointer-plus-trigger-register shape the command-list engines use
for their own headers (cmdlist_engine.go), applied to a single-shot
message instead of an opcode stream.
*/

package main

import (
	"bufio"
	"fmt"
	"io"
)

type DebugDevice struct {
	mem *MemoryMap
	out *bufio.Writer

	messagePtr uint32
	length     uint32
	status     uint32
}

func NewDebugDevice(mem *MemoryMap, out io.Writer) *DebugDevice {
	return &DebugDevice{mem: mem, out: bufio.NewWriter(out)}
}

// MapOnto registers the device's MMIO window with mem.
func (d *DebugDevice) MapOnto(mem *MemoryMap) {
	mem.MapDevice(&DeviceRegion{
		Name:       "debug",
		Start:      DebugBase,
		End:        DebugBase + DebugSize,
		WidthsMask: 1 << 4,
		OnRead:     d.onRead,
		OnWrite:    d.onWrite,
	})
}

func (d *DebugDevice) onRead(addr uint32, width int) (uint32, error) {
	if addr == DebugRegStatus {
		return d.status, nil
	}
	return 0, nil
}

func (d *DebugDevice) onWrite(addr uint32, width int, val uint32) error {
	switch addr {
	case DebugRegMessagePtr:
		d.messagePtr = val
	case DebugRegLength:
		d.length = val
	case DebugRegWriteTrigger:
		d.emit()
	case DebugRegFlushTrigger:
		_ = d.out.Flush()
	}
	return nil
}

// LogDiagnostic writes a host-originated diagnostic line (spec §7 kind 2:
// "a diagnostic is emitted via the debug device") directly to the output
// stream, bypassing the guest's message_ptr/length/write_trigger protocol.
func (d *DebugDevice) LogDiagnostic(format string, args ...any) {
	fmt.Fprintf(d.out, format+"\n", args...)
	d.out.Flush()
}

func (d *DebugDevice) emit() {
	msg, err := d.mem.ReadBytes(d.messagePtr, d.length)
	if err != nil {
		d.status = 0xFFFF_FFFF
		return
	}
	d.out.Write(msg)
	d.out.WriteByte('\n')
	d.status = 1
}
