// errors.go - Error kinds for the RVFM virtual machine
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
errors.go partitions failures into the three kinds the machine distinguishes:

 1. Guest-visible faults (unmapped access, misalignment, illegal instruction)
    are returned as *Fault values by the memory map and as
    *IllegalInstruction values by the hart's execute step; Hart.Step turns
    both into synchronous exceptions, and none of them may panic the
    emulator.
 2. Command-list protocol errors (bad length, unknown opcode, out-of-range
    resource id) never leave the command engine as a Go error: they set the
    completion word to 0xFFFFFFFF and are logged to the debug device.
 3. Emulator-internal invariants (resource table corruption, a goroutine
    that refuses to join) are fatal and unreachable from guest input; they
    are reported as FatalError and terminate the machine.
*/

package main

import "fmt"

// FaultKind distinguishes the guest-visible fault categories from spec §4.1.
type FaultKind int

const (
	FaultInvalidAddress FaultKind = iota
	FaultInvalidAlignment
	FaultWidthNotSupported
)

func (k FaultKind) String() string {
	switch k {
	case FaultInvalidAddress:
		return "invalid address"
	case FaultInvalidAlignment:
		return "invalid alignment"
	case FaultWidthNotSupported:
		return "width not supported"
	default:
		return "unknown fault"
	}
}

// Fault is a guest-visible memory access fault. It carries no side effects:
// by the time a Fault is returned, no guest memory or device state has
// changed as a result of the failed access.
type Fault struct {
	Kind    FaultKind
	Addr    uint32
	Width   int
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s at 0x%08X (width %d): %s", f.Kind, f.Addr, f.Width, f.Message)
}

func newFault(kind FaultKind, addr uint32, width int, msg string) *Fault {
	return &Fault{Kind: kind, Addr: addr, Width: width, Message: msg}
}

// IllegalInstruction is a synchronous-exception-worthy hart fault returned
// by the hart's execute step when a decoded instruction's funct fields are
// not recognised. (An unrecognised major opcode is rejected by decodeRV32,
// which reports ok=false instead.)
type IllegalInstruction struct {
	PC    uint32
	Instr uint32
}

func (e *IllegalInstruction) Error() string {
	return fmt.Sprintf("illegal instruction 0x%08X at pc 0x%08X", e.Instr, e.PC)
}

// FatalError marks an emulator-internal invariant violation. These must
// never be reachable from guest input; any code path that can construct one
// is a bug in the emulator itself, not in the guest program.
type FatalError struct {
	Component string
	Cause     error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal error in %s: %v", e.Component, e.Cause)
}

func (e *FatalError) Unwrap() error { return e.Cause }

func fatalf(component string, format string, args ...any) *FatalError {
	return &FatalError{Component: component, Cause: fmt.Errorf(format, args...)}
}
