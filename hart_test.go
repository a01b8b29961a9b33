package main

import "testing"

func newTestHart(t *testing.T) (*Hart, *MemoryMap) {
	t.Helper()
	mem, err := NewMemoryMap(nil)
	if err != nil {
		t.Fatalf("NewMemoryMap: %v", err)
	}
	ic := NewInterruptController()
	clock := NewHartClock(ic)
	h := NewHart(0, mem, ic, clock)
	return h, mem
}

// storeInstr places instr at addr. Guest stores to ROM fault, so words in
// the ROM window go straight into its backing store.
func storeInstr(mem *MemoryMap, addr uint32, instr uint32) {
	if addr >= RomStart && addr+4 <= RamStart {
		off := addr - RomStart
		writeLE(mem.rom[off:off+4], 4, instr)
		return
	}
	mem.Write32(addr, instr)
}

// encodeI builds an I-type instruction (opcode, rd, funct3, rs1, imm12).
func encodeI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeR(opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u&0x1F)<<7 | opcode
}

func TestHartX0AlwaysZero(t *testing.T) {
	h, mem := newTestHart(t)
	// addi x0, x0, 5
	storeInstr(mem, RomStart, encodeI(opOpImm, 0, 0, 0, 5))
	if err := h.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if h.X[0] != 0 {
		t.Fatalf("x0 must remain 0, got %d", h.X[0])
	}
}

func TestHartAddImmediate(t *testing.T) {
	h, mem := newTestHart(t)
	// addi x1, x0, 42
	storeInstr(mem, RomStart, encodeI(opOpImm, 1, 0, 0, 42))
	if err := h.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if h.X[1] != 42 {
		t.Fatalf("x1 = %d, want 42", h.X[1])
	}
	if h.PC != RomStart+4 {
		t.Fatalf("PC = %#x, want %#x", h.PC, RomStart+4)
	}
}

func TestHartStoreLoadRoundTrip(t *testing.T) {
	h, mem := newTestHart(t)
	// x1 = RamStart+0x1000, built with lui+addi since the address does not
	// fit in a 12-bit immediate.
	addr := RamStart + 0x1000
	storeInstr(mem, RomStart+0, encodeUInstr(opLUI, 1, addr&0xFFFFF000))
	storeInstr(mem, RomStart+4, encodeI(opOpImm, 1, 0, 1, int32(addr&0xFFF)))
	// addi x2, x0, 1234: a value that fits in a 12-bit immediate.
	storeInstr(mem, RomStart+8, encodeI(opOpImm, 2, 0, 0, 1234))
	storeInstr(mem, RomStart+12, encodeS(opStore, 0b010, 1, 2, 0)) // sw x2, 0(x1)
	storeInstr(mem, RomStart+16, encodeI(opLoad, 3, 0b010, 1, 0))  // lw x3, 0(x1)

	for i := 0; i < 5; i++ {
		if err := h.Step(); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
	if h.X[3] != 1234 {
		t.Fatalf("x3 = %d, want 1234", h.X[3])
	}
	got, err := mem.Read32(addr)
	if err != nil {
		t.Fatalf("Read32: %v", err)
	}
	if got != 1234 {
		t.Fatalf("memory at target = %d, want 1234", got)
	}
}

func encodeUInstr(opcode, rd uint32, imm uint32) uint32 {
	return (imm & 0xFFFFF000) | rd<<7 | opcode
}

func TestHartBranchTaken(t *testing.T) {
	h, mem := newTestHart(t)
	// beq x0, x0, +8 (taken)
	storeInstr(mem, RomStart, encodeB(opBranch, 0b000, 0, 0, 8))
	if err := h.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if h.PC != RomStart+8 {
		t.Fatalf("PC = %#x, want %#x (branch should be taken)", h.PC, RomStart+8)
	}
}

func encodeB(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	bit11 := (u >> 11) & 0x1
	bit12 := (u >> 12) & 0x1
	bits4_1 := (u >> 1) & 0xF
	bits10_5 := (u >> 5) & 0x3F
	return bit12<<31 | bits10_5<<25 | rs2<<20 | rs1<<15 | funct3<<12 | bits4_1<<8 | bit11<<7 | opcode
}

func TestHartHaltedDoesNotStep(t *testing.T) {
	h, mem := newTestHart(t)
	h.Halt()
	storeInstr(mem, RomStart, encodeI(opOpImm, 1, 0, 0, 99))
	if err := h.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if h.X[1] != 0 {
		t.Fatalf("halted hart must not execute, x1 = %d", h.X[1])
	}
}

func TestHartSingleStepReturnsToHalted(t *testing.T) {
	h, mem := newTestHart(t)
	h.Halt()
	h.SingleStep()
	storeInstr(mem, RomStart, encodeI(opOpImm, 1, 0, 0, 7))
	storeInstr(mem, RomStart+4, encodeI(opOpImm, 2, 0, 0, 7))
	if err := h.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if h.State != HartHalted {
		t.Fatalf("expected hart to return to halted after single step, got %v", h.State)
	}
	if h.X[1] != 7 {
		t.Fatalf("expected first instruction to retire, x1 = %d", h.X[1])
	}
	// A second Step() should not execute since we never re-armed SingleStep.
	if err := h.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if h.X[2] != 0 {
		t.Fatalf("hart must not execute further instructions while halted, x2 = %d", h.X[2])
	}
}

func TestHartInterruptEntryAndMret(t *testing.T) {
	h, mem := newTestHart(t)
	h.mtvec = RamStart // direct mode
	h.mstatus = mstatusMIEBit
	h.ic.SetEnable(0, uint32(IntSoft))
	h.ic.Raise(0, IntSoft)

	startPC := h.PC
	// mret at the trap target so the step after trap entry restores PC.
	storeInstr(mem, RamStart, encodeSystem(0x302, 0, 0b000, 0))

	if err := h.Step(); err != nil {
		t.Fatalf("Step (trap entry): %v", err)
	}
	if h.mepc != startPC {
		t.Fatalf("mepc = %#x, want %#x", h.mepc, startPC)
	}
	if h.mcause&0x8000_0000 == 0 {
		t.Fatal("expected interrupt bit set in mcause")
	}
	if h.PC != RamStart {
		t.Fatalf("PC after trap entry = %#x, want %#x", h.PC, RamStart)
	}

	if err := h.Step(); err != nil {
		t.Fatalf("Step (mret): %v", err)
	}
	if h.PC != startPC {
		t.Fatalf("PC after mret = %#x, want %#x", h.PC, startPC)
	}
}

func encodeSystem(funct12, rs1, funct3, rd uint32) uint32 {
	return funct12<<20 | rs1<<15 | funct3<<12 | rd<<7 | opSystem
}
