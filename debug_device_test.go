package main

import (
	"bytes"
	"testing"
)

func TestDebugDeviceWriteTriggerEmitsMessage(t *testing.T) {
	mem, err := NewMemoryMap(nil)
	if err != nil {
		t.Fatalf("NewMemoryMap: %v", err)
	}
	var out bytes.Buffer
	d := NewDebugDevice(mem, &out)
	d.MapOnto(mem)

	msg := []byte("hello debugger")
	if err := mem.WriteBytes(RamStart, msg); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	mem.Write32(DebugRegMessagePtr, RamStart)
	mem.Write32(DebugRegLength, uint32(len(msg)))
	mem.Write32(DebugRegWriteTrigger, 1)
	mem.Write32(DebugRegFlushTrigger, 1)

	if got := out.String(); got != "hello debugger\n" {
		t.Fatalf("debug output = %q, want %q", got, "hello debugger\n")
	}

	status, _ := mem.Read32(DebugRegStatus)
	if status != 1 {
		t.Fatalf("status = %d, want 1", status)
	}
}

func TestDebugDeviceLogDiagnosticBypassesTriggerProtocol(t *testing.T) {
	var out bytes.Buffer
	d := NewDebugDevice(nil, &out)
	d.LogDiagnostic("protocol error: %s", "bad opcode")
	if got := out.String(); got != "protocol error: bad opcode\n" {
		t.Fatalf("output = %q", got)
	}
}
