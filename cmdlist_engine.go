// cmdlist_engine.go - Shared GPU/SPU command-list queue and dispatch
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
CommandListEngine implements the producer/consumer contract shared by the
GPU and SPU (spec §4.5): a guest store to a queue register hands the
engine the address of a command-list header; the engine's own goroutine
dequeues FIFO, validates and walks the payload, and publishes the
completion word. It is grounded on the ticket/queue/completion shape of
the Engine's coprocessor_manager.go (CoprocWorker/CoprocCompletion), here
simplified to one FIFO per queue register, each drained by its own
dedicated consumer goroutine rather than a fixed worker pool, since spec
§4.5 requires FIFO ordering per queue rather than arbitrary worker handoff.

Device-specific opcode handling (GPU draw/texture commands, SPU voice
commands) is supplied by an OpcodeHandler; write_flag is common to both
and is handled here directly since its semantics (spec §4.5 step 4) do not
vary by device.
*/

package main

import (
	"context"
	"fmt"
)

const maxCommandListBytes = 128 * 1024

// OpcodeHandler decodes and executes one device-specific command starting
// at body[0] (the opcode byte already consumed by the caller is not
// included; body begins at the first field byte). It returns the number
// of bytes consumed by this command (not including the opcode byte) and
// an error only for unrecoverable protocol violations (unknown opcode,
// short buffer) — spec §7 kind 2, which the engine turns into an
// all-ones completion rather than ever panicking or returning a Go error
// across the queue boundary.
type OpcodeHandler interface {
	Execute(opcode byte, body []byte) (consumed int, err error)
}

// writeFlagOpcode is reserved on every device's opcode table (spec §4.5
// step 4); device-specific tables assign their own opcodes below this value.
const writeFlagOpcode = 0xFF

type CommandListEngine struct {
	name    string
	mem     *MemoryMap
	ic      *InterruptController
	irqLine InterruptSource
	handler OpcodeHandler
	hartID  int // which hart's interrupt line this device raises on; 0 by convention

	submit chan uint32
	logf   func(format string, args ...any)
}

func NewCommandListEngine(name string, mem *MemoryMap, ic *InterruptController, irqLine InterruptSource, handler OpcodeHandler, logf func(string, ...any)) *CommandListEngine {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &CommandListEngine{
		name:    name,
		mem:     mem,
		ic:      ic,
		irqLine: irqLine,
		handler: handler,
		submit:  make(chan uint32, 256),
		logf:    logf,
	}
}

// Submit enqueues the command list whose header begins at addr. Called
// from whatever hart goroutine performed the guest store to the queue
// register; queues are multiple-producer/single-consumer (spec §5).
func (e *CommandListEngine) Submit(addr uint32) {
	e.submit <- addr
}

// Run drains the submission queue until ctx is cancelled, processing one
// list fully before looking at the next (FIFO per queue, spec §4.5).
func (e *CommandListEngine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case addr := <-e.submit:
			e.process(addr)
		}
	}
}

func (e *CommandListEngine) process(headerAddr uint32) {
	length, err := e.mem.Read32(headerAddr)
	if err != nil {
		e.logf("%s: header read failed at %#x: %v", e.name, headerAddr, err)
		return
	}
	completionPtr, err := e.mem.Read32(headerAddr + 4)
	if err != nil {
		e.logf("%s: completion pointer read failed at %#x: %v", e.name, headerAddr, err)
		return
	}

	if length > maxCommandListBytes {
		e.fail(completionPtr, fmt.Errorf("command list length %d exceeds %d byte bound", length, maxCommandListBytes))
		return
	}

	var payload []byte
	if length > 0 {
		payload, err = e.mem.ReadBytes(headerAddr+8, length)
		if err != nil {
			e.fail(completionPtr, fmt.Errorf("command list payload unreadable: %w", err))
			return
		}
	}

	off := 0
	for off < len(payload) {
		opcode := payload[off]
		off++
		if opcode == writeFlagOpcode {
			n, err := e.execWriteFlag(payload[off:])
			if err != nil {
				e.fail(completionPtr, err)
				return
			}
			off += n
			continue
		}
		n, err := e.handler.Execute(opcode, payload[off:])
		if err != nil {
			e.fail(completionPtr, err)
			return
		}
		off += n
	}

	e.complete(completionPtr, 1)
}

// write_flag fields: [addr:u32][value:u32][flags:u8] where flags bit 0
// requests an interrupt.
func (e *CommandListEngine) execWriteFlag(body []byte) (int, error) {
	if len(body) < 9 {
		return 0, fmt.Errorf("write_flag: short command (%d bytes)", len(body))
	}
	addr := le32(body[0:4])
	value := le32(body[4:8])
	flags := body[8]
	if err := e.mem.Write32(addr, value); err != nil {
		return 0, fmt.Errorf("write_flag: %w", err)
	}
	if flags&1 != 0 {
		e.ic.Raise(e.hartID, e.irqLine)
	}
	return 9, nil
}

func (e *CommandListEngine) fail(completionPtr uint32, err error) {
	e.logf("%s: protocol error: %v", e.name, err)
	_ = e.mem.Write32(completionPtr, 0xFFFF_FFFF)
}

func (e *CommandListEngine) complete(completionPtr uint32, seq uint32) {
	if err := e.mem.Write32(completionPtr, seq); err != nil {
		e.logf("%s: failed to publish completion at %#x: %v", e.name, completionPtr, err)
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
