// hart.go - Fetch-decode-execute loop for one integer core
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
Hart is one of the machine's four independently steppable RISC-V–style
integer cores (spec §4.2). Its run loop is a straight port of the shape the
Engine uses for cpu_ie32.go's Execute loop — fetch, decode, execute,
advance PC — generalised to the state machine spec.md demands: Halted,
Running, WaitingForInterrupt and Stepping, with debugger interposition
checked once per instruction boundary via BreakHook.

CSR addresses follow the real RISC-V machine-mode assignment (mstatus
0x300, mie 0x304, mtvec 0x305, mepc 0x341, mcause 0x342, mip 0x344,
mhartid 0xF14) since "RISC-V-style" is the closest idiom a Go reader would
recognise; only the subset spec §3 names is implemented.
*/

package main

import "sync"

type HartState int

const (
	HartHalted HartState = iota
	HartRunning
	HartWFI
	HartStepping
)

func (s HartState) String() string {
	switch s {
	case HartHalted:
		return "halted"
	case HartRunning:
		return "running"
	case HartWFI:
		return "waiting-for-interrupt"
	case HartStepping:
		return "stepping"
	default:
		return "unknown"
	}
}

const (
	csrMstatus = 0x300
	csrMie     = 0x304
	csrMtvec   = 0x305
	csrMepc    = 0x341
	csrMcause  = 0x342
	csrMip     = 0x344
	csrMhartid = 0xF14

	mstatusMIEBit  = uint32(1) << 3
	mstatusMPIEBit = uint32(1) << 7
)

// Hart is one integer execution context.
type Hart struct {
	mu    sync.Mutex
	ID    int
	PC    uint32
	X     [32]uint32
	State HartState

	mstatus uint32
	mtvec   uint32
	mepc    uint32
	mcause  uint32

	mem   *MemoryMap
	ic    *InterruptController
	clock *HartClock

	// BreakHook is consulted before every fetch; if it returns true the
	// hart halts instead of retiring the instruction at PC (spec §4.9:
	// "a running hart checks the breakpoint table before fetch").
	BreakHook func(hartID int, pc uint32) bool

	// FatalSink receives emulator-internal invariant violations
	// encountered while running (kind 3, spec §7); never set from any
	// guest-reachable decode/execute path.
	FatalSink func(err error)
}

// NewHart constructs a hart. Hart 0 starts Running at RomStart; harts 1-3
// start Halted until a store to their start-trigger register (wired in
// machine.go) calls Start.
func NewHart(id int, mem *MemoryMap, ic *InterruptController, clock *HartClock) *Hart {
	h := &Hart{ID: id, mem: mem, ic: ic, clock: clock}
	h.mstatus = mstatusMPIEBit
	if id == 0 {
		h.PC = RomStart
		h.State = HartRunning
	} else {
		h.State = HartHalted
	}
	return h
}

// Start transitions a halted hart to running with a fresh register file
// and the given start PC, per spec §3 ("a fresh register file").
func (h *Hart) Start(pc uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.X = [32]uint32{}
	h.PC = pc
	h.mstatus = mstatusMPIEBit
	h.mcause = 0
	h.mepc = 0
	h.State = HartRunning
}

// Halt forces the hart out of its running loop by the next instruction
// boundary (debugger external halt, or fatal shutdown).
func (h *Hart) Halt() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.State != HartHalted {
		h.State = HartHalted
	}
}

// Continue resumes a halted hart from its current PC.
func (h *Hart) Continue() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.State == HartHalted {
		h.State = HartRunning
	}
}

// SingleStep arms the hart to retire exactly one instruction then return
// to Halted.
func (h *Hart) SingleStep() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.State == HartHalted {
		h.State = HartStepping
	}
}

func (h *Hart) x(i uint32) uint32 {
	if i == 0 {
		return 0
	}
	return h.X[i]
}

func (h *Hart) setX(i uint32, v uint32) {
	if i == 0 {
		return
	}
	h.X[i] = v
}

// Step retires at most one instruction. It returns a non-nil error only
// for kind-3 fatal emulator conditions; guest-visible faults are handled
// internally as synchronous exceptions and never returned here.
func (h *Hart) Step() error {
	h.mu.Lock()
	state := h.State
	h.mu.Unlock()

	switch state {
	case HartHalted:
		return nil
	case HartWFI:
		if h.ic.Asserted(h.ID) {
			h.mu.Lock()
			h.State = HartRunning
			h.mu.Unlock()
		}
		return nil
	}

	h.clock.Tick(h.ID)

	if h.mstatus&mstatusMIEBit != 0 && h.ic.Asserted(h.ID) {
		h.enterTrap(true, h.pendingCauseCode())
		h.afterStep(state)
		return nil
	}

	if h.BreakHook != nil && h.BreakHook(h.ID, h.PC) {
		h.mu.Lock()
		h.State = HartHalted
		h.mu.Unlock()
		return nil
	}

	instr, err := h.mem.Read32(h.PC)
	if err != nil {
		h.enterTrap(false, 0)
		h.afterStep(state)
		return nil
	}

	d, ok := decodeRV32(instr)
	if !ok {
		h.enterTrap(false, 2) // illegal instruction cause code
		h.afterStep(state)
		return nil
	}

	if err := h.execute(d); err != nil {
		if _, ok := err.(*FatalError); ok {
			if h.FatalSink != nil {
				h.FatalSink(err)
			}
			return err
		}
		if _, ok := err.(*IllegalInstruction); ok {
			h.enterTrap(false, 2) // illegal instruction cause code
		} else {
			h.enterTrap(false, 5) // load/store access fault cause code
		}
	}

	h.afterStep(state)
	return nil
}

func (h *Hart) afterStep(enteredAs HartState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if enteredAs == HartStepping && h.State != HartHalted {
		h.State = HartHalted
	}
}

// pendingCauseCode picks the lowest-numbered asserted+enabled source as
// the interrupt cause, matching a simple fixed-priority controller.
func (h *Hart) pendingCauseCode() uint32 {
	mask := h.ic.Pending(h.ID) & h.ic.Enable(h.ID)
	for i := uint32(0); i < 32; i++ {
		if mask&(1<<i) != 0 {
			return i
		}
	}
	return 0
}

// enterTrap performs the interrupt/exception entry sequence from spec
// §4.2: save PC to mepc, set mcause (top bit set for interrupts), copy
// MIE into MPIE and clear MIE, then jump per mtvec.
func (h *Hart) enterTrap(isInterrupt bool, cause uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.mepc = h.PC
	if isInterrupt {
		h.mcause = cause | 0x8000_0000
	} else {
		h.mcause = cause
	}
	if h.mstatus&mstatusMIEBit != 0 {
		h.mstatus |= mstatusMPIEBit
	} else {
		h.mstatus &^= mstatusMPIEBit
	}
	h.mstatus &^= mstatusMIEBit

	if h.mtvec&1 != 0 {
		h.PC = (h.mtvec &^ 1) + cause*4
	} else {
		h.PC = h.mtvec &^ 1
	}
}

// mret restores MIE from MPIE and PC from mepc.
func (h *Hart) mret() {
	if h.mstatus&mstatusMPIEBit != 0 {
		h.mstatus |= mstatusMIEBit
	} else {
		h.mstatus &^= mstatusMIEBit
	}
	h.PC = h.mepc
}

func (h *Hart) readCSR(addr uint32) uint32 {
	switch addr {
	case csrMstatus:
		return h.mstatus
	case csrMie:
		return h.ic.Enable(h.ID)
	case csrMip:
		return h.ic.Pending(h.ID)
	case csrMtvec:
		return h.mtvec
	case csrMepc:
		return h.mepc
	case csrMcause:
		return h.mcause
	case csrMhartid:
		return uint32(h.ID)
	default:
		return 0
	}
}

func (h *Hart) writeCSR(addr uint32, val uint32) {
	switch addr {
	case csrMstatus:
		h.mstatus = val
	case csrMie:
		h.ic.SetEnable(h.ID, val)
	case csrMip:
		h.ic.SetPending(h.ID, val)
	case csrMtvec:
		h.mtvec = val
	case csrMepc:
		h.mepc = val
	case csrMcause:
		h.mcause = val
	case csrMhartid:
		// read-only, writes discarded
	}
}

func (h *Hart) execute(d decoded) error {
	switch d.Opcode {
	case opLUI:
		h.setX(d.Rd, uint32(d.Imm))
		h.PC += 4
	case opAUIPC:
		h.setX(d.Rd, h.PC+uint32(d.Imm))
		h.PC += 4
	case opJAL:
		h.setX(d.Rd, h.PC+4)
		h.PC = h.PC + uint32(d.Imm)
	case opJALR:
		next := h.PC + 4
		target := (h.x(d.Rs1) + uint32(d.Imm)) &^ 1
		h.setX(d.Rd, next)
		h.PC = target
	case opBranch:
		taken := false
		a, b := h.x(d.Rs1), h.x(d.Rs2)
		switch d.Funct3 {
		case 0b000:
			taken = a == b
		case 0b001:
			taken = a != b
		case 0b100:
			taken = int32(a) < int32(b)
		case 0b101:
			taken = int32(a) >= int32(b)
		case 0b110:
			taken = a < b
		case 0b111:
			taken = a >= b
		}
		if taken {
			h.PC = h.PC + uint32(d.Imm)
		} else {
			h.PC += 4
		}
	case opLoad:
		addr := h.x(d.Rs1) + uint32(d.Imm)
		var val uint32
		var err error
		switch d.Funct3 {
		case 0b000: // lb
			var v uint8
			v, err = h.mem.Read8(addr)
			val = uint32(int32(int8(v)))
		case 0b001: // lh
			var v uint16
			v, err = h.mem.Read16(addr)
			val = uint32(int32(int16(v)))
		case 0b010: // lw
			val, err = h.mem.Read32(addr)
		case 0b100: // lbu
			var v uint8
			v, err = h.mem.Read8(addr)
			val = uint32(v)
		case 0b101: // lhu
			var v uint16
			v, err = h.mem.Read16(addr)
			val = uint32(v)
		default:
			return &IllegalInstruction{PC: h.PC, Instr: d.Raw}
		}
		if err != nil {
			return err
		}
		h.setX(d.Rd, val)
		h.PC += 4
	case opStore:
		addr := h.x(d.Rs1) + uint32(d.Imm)
		val := h.x(d.Rs2)
		var err error
		switch d.Funct3 {
		case 0b000:
			err = h.mem.Write8(addr, uint8(val))
		case 0b001:
			err = h.mem.Write16(addr, uint16(val))
		case 0b010:
			err = h.mem.Write32(addr, val)
		default:
			return &IllegalInstruction{PC: h.PC, Instr: d.Raw}
		}
		if err != nil {
			return err
		}
		h.PC += 4
	case opOpImm:
		a := h.x(d.Rs1)
		imm := uint32(d.Imm)
		var val uint32
		switch d.Funct3 {
		case 0b000:
			val = a + imm
		case 0b010:
			if int32(a) < d.Imm {
				val = 1
			}
		case 0b011:
			if a < imm {
				val = 1
			}
		case 0b100:
			val = a ^ imm
		case 0b110:
			val = a | imm
		case 0b111:
			val = a & imm
		case 0b001:
			val = a << (imm & 0x1F)
		case 0b101:
			if d.Funct7&0x20 != 0 {
				val = uint32(int32(a) >> (imm & 0x1F))
			} else {
				val = a >> (imm & 0x1F)
			}
		}
		h.setX(d.Rd, val)
		h.PC += 4
	case opOp:
		a, b := h.x(d.Rs1), h.x(d.Rs2)
		var val uint32
		switch {
		case d.Funct3 == 0b000 && d.Funct7 == 0x00:
			val = a + b
		case d.Funct3 == 0b000 && d.Funct7 == 0x20:
			val = a - b
		case d.Funct3 == 0b001:
			val = a << (b & 0x1F)
		case d.Funct3 == 0b010:
			if int32(a) < int32(b) {
				val = 1
			}
		case d.Funct3 == 0b011:
			if a < b {
				val = 1
			}
		case d.Funct3 == 0b100:
			val = a ^ b
		case d.Funct3 == 0b101 && d.Funct7 == 0x00:
			val = a >> (b & 0x1F)
		case d.Funct3 == 0b101 && d.Funct7 == 0x20:
			val = uint32(int32(a) >> (b & 0x1F))
		case d.Funct3 == 0b110:
			val = a | b
		case d.Funct3 == 0b111:
			val = a & b
		default:
			return &IllegalInstruction{PC: h.PC, Instr: d.Raw}
		}
		h.setX(d.Rd, val)
		h.PC += 4
	case opSystem:
		funct12 := d.Raw >> 20
		switch d.Funct3 {
		case 0b000:
			switch funct12 {
			case 0x302: // mret
				h.mret()
			case 0x105: // wfi
				h.PC += 4
				if !h.ic.Asserted(h.ID) {
					h.mu.Lock()
					h.State = HartWFI
					h.mu.Unlock()
				}
			default: // ecall/ebreak: treated as a no-op trap point
				h.PC += 4
			}
		case 0b001, 0b010, 0b011, 0b101, 0b110, 0b111:
			csr := d.Raw >> 20
			old := h.readCSR(csr)
			var src uint32
			if d.Funct3 >= 0b101 {
				src = d.Rs1 // zimm
			} else {
				src = h.x(d.Rs1)
			}
			var next uint32
			switch d.Funct3 & 0b011 {
			case 0b001:
				next = src
			case 0b010:
				next = old | src
			case 0b011:
				next = old &^ src
			}
			h.writeCSR(csr, next)
			h.setX(d.Rd, old)
			h.PC += 4
		default:
			return &IllegalInstruction{PC: h.PC, Instr: d.Raw}
		}
	default:
		return &IllegalInstruction{PC: h.PC, Instr: d.Raw}
	}
	return nil
}
