// machine.go - Wires the four harts, devices and debugger into one machine
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
Machine owns every piece of the RVFM address space (spec §5) and supervises
one goroutine per hart plus one per device queue set with
golang.org/x/sync/errgroup, the way the Engine's own coprocessor_manager.go
fans its worker goroutines out under a single WaitGroup-like supervisor —
here an errgroup so the first goroutine to return a non-nil error cancels
every sibling's context and the whole machine unwinds together, matching
spec §7 kind 3's "terminates the machine" for a FatalError surfaced from
any hart.
*/

package main

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

type Machine struct {
	mem   *MemoryMap
	ic    *InterruptController
	clock *HartClock
	harts [NumHarts]*Hart

	gpu      *GPUDevice
	spu      *SPUDevice
	input    *InputDevice
	debugDev *DebugDevice
	debugger *Debugger

	audio   *OtoPlayer
	display *EbitenDisplay
}

// NewMachine constructs a machine from a ROM image. present receives
// presented frames (nil for headless/test use); out receives debug-device
// diagnostic output.
func NewMachine(rom []byte, present PresentSink, out io.Writer, logf func(string, ...any)) (*Machine, error) {
	if logf == nil {
		logf = func(string, ...any) {}
	}

	mem, err := NewMemoryMap(rom)
	if err != nil {
		return nil, err
	}

	ic := NewInterruptController()
	ic.MapOnto(mem)

	clock := NewHartClock(ic)
	clock.MapOnto(mem)

	var harts [NumHarts]*Hart
	for i := range harts {
		harts[i] = NewHart(i, mem, ic, clock)
	}
	mapHartStart(mem, &harts)

	debugDev := NewDebugDevice(mem, out)
	debugDev.MapOnto(mem)

	// Protocol-error diagnostics (spec §7 kind 2) go out via the debug
	// device as well as the caller's own log sink, so a CLI run sees them
	// on stderr and a scripted/debugger session sees them on the same
	// channel as guest-emitted messages.
	diag := func(format string, args ...any) {
		logf(format, args...)
		debugDev.LogDiagnostic(format, args...)
	}

	gpu := NewGPUDevice(mem, ic, present, diag)
	spu := NewSPUDevice(mem, ic, diag)

	input := NewInputDevice()
	input.MapOnto(mem)

	dbg := NewDebugger(harts)

	return &Machine{
		mem:      mem,
		ic:       ic,
		clock:    clock,
		harts:    harts,
		gpu:      gpu,
		spu:      spu,
		input:    input,
		debugDev: debugDev,
		debugger: dbg,
	}, nil
}

// mapHartStart registers the hart start-trigger window: a store to
// HartStartBase + hart*4 starts that hart at the written PC (spec §3:
// "harts 1-3 start halted until triggered, with a fresh register file").
// Hart 0 is already running from NewHart and ignores this window.
func mapHartStart(mem *MemoryMap, harts *[NumHarts]*Hart) {
	mem.MapDevice(&DeviceRegion{
		Name:       "hart start",
		Start:      HartStartBase,
		End:        HartStartBase + HartStartSize,
		WidthsMask: 1 << 4,
		OnWrite: func(addr uint32, width int, val uint32) error {
			idx := int((addr - HartStartBase) / 4)
			if idx <= 0 || idx >= NumHarts {
				return nil
			}
			harts[idx].Start(val)
			return nil
		},
	})
}

// AttachDisplay sets the host window that will receive present_texture
// frames and poll for button input. Call before Run.
func (m *Machine) AttachDisplay(d *EbitenDisplay) {
	m.display = d
}

// AttachAudio sets the host audio backend that pulls samples from the SPU.
// Call before Run.
func (m *Machine) AttachAudio(a *OtoPlayer) {
	m.audio = a
	a.SetupPlayer(m.spu)
}

// Debugger returns the machine's debugger, wired against all four harts.
func (m *Machine) Debugger() *Debugger { return m.debugger }

// Input returns the machine's button-state device, for a host frontend
// without its own poll loop (e.g. a test driving buttons directly).
func (m *Machine) Input() *InputDevice { return m.input }

// SeedTexture bootstraps GPU texture id from a decoded image before guest
// code runs (SPEC_FULL.md §4.11). Call before Run.
func (m *Machine) SeedTexture(id, width, height int, pixels []byte) error {
	return m.gpu.SeedTexture(id, width, height, pixels)
}

// SnapshotTexture returns texture id's current contents, for the
// -dumptexture command-line option to write to disk via SaveTextureSnapshot.
func (m *Machine) SnapshotTexture(id int) (width, height int, pixels []byte, ok bool) {
	return m.gpu.SnapshotTexture(id)
}

// Run starts every hart and device goroutine and blocks until ctx is
// cancelled or one of them returns a fatal error, at which point every
// sibling is cancelled too.
func (m *Machine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return m.gpu.Run(gctx) })
	g.Go(func() error { return m.spu.Run(gctx) })

	for i := range m.harts {
		h := m.harts[i]
		g.Go(func() error { return runHart(gctx, h) })
	}

	if m.audio != nil {
		m.audio.Start()
	}

	err := g.Wait()

	if m.audio != nil {
		m.audio.Stop()
	}
	return err
}

// runHart retires instructions on h until ctx is cancelled or h reports a
// kind-3 fatal error.
func runHart(ctx context.Context, h *Hart) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := h.Step(); err != nil {
			return err
		}
	}
}
