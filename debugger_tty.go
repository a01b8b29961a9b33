// debugger_tty.go - raw-mode stdin plumbing for single-keystroke stepping
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
TTYStepper puts stdin into raw mode so a single keystroke (without Enter)
drives SingleStep/Continue/Halt, mirroring the teacher's TerminalHost raw
mode setup (terminal_host.go) but feeding the debugger's run-control
methods instead of a TerminalMMIO device. A second goroutine polls hart 0
for a breakpoint halt and, if a Lua script is attached to the breakpoint
that fired, runs it (debugger_script.go) — this is how 'c' (continue,
which halts asynchronously from the hart's own goroutine) triggers a
script rather than just 's'.
*/

package main

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

// breakpointPollInterval is how often the watcher goroutine checks hart 0
// for a new breakpoint halt while in an interactive debug session.
const breakpointPollInterval = 5 * time.Millisecond

// TTYStepper reads single keystrokes from stdin and dispatches them to a
// Debugger: 's' single-steps hart 0, 'c' continues it, 'h' halts it, 'r'
// copies hart 0's register dump to the clipboard, 'b' copies the
// breakpoint list, 'y' prints the loaded ELF's symbol table. scripts may
// be nil to disable breakpoint scripting.
type TTYStepper struct {
	dbg          *Debugger
	scripts      *ScriptedBreakpoints
	fd           int
	oldTermState *term.State
	stopCh       chan struct{}
	done         chan struct{}
	watchDone    chan struct{}
	stopped      sync.Once
}

func NewTTYStepper(dbg *Debugger, scripts *ScriptedBreakpoints) *TTYStepper {
	return &TTYStepper{
		dbg:       dbg,
		scripts:   scripts,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		watchDone: make(chan struct{}),
	}
}

// Start puts stdin into raw mode and begins dispatching keystrokes in a
// goroutine. Call Stop to restore stdin.
func (s *TTYStepper) Start() error {
	s.fd = int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(s.fd)
	if err != nil {
		close(s.done)
		close(s.watchDone)
		return fmt.Errorf("tty stepper: raw mode: %w", err)
	}
	s.oldTermState = oldState

	go func() {
		defer close(s.done)
		buf := make([]byte, 1)
		for {
			select {
			case <-s.stopCh:
				return
			default:
			}
			n, err := syscall.Read(s.fd, buf)
			if n > 0 {
				s.dispatch(buf[0])
			}
			if err != nil {
				return
			}
		}
	}()

	go s.watchBreakpoints()
	return nil
}

func (s *TTYStepper) dispatch(key byte) {
	switch key {
	case 's':
		_ = s.dbg.SingleStep(0)
		s.reportLocation()
	case 'c':
		_ = s.dbg.Continue(0)
	case 'h':
		_ = s.dbg.Halt(0)
		s.reportLocation()
	case 'r':
		_, _ = s.dbg.CopyRegisterDump(0)
	case 'b':
		_ = s.dbg.CopyBreakpointList()
	case 'y':
		s.printSymbols()
	}
}

// reportLocation prints hart 0's current PC, annotated with the nearest
// loaded symbol (e.g. "pc=0x1004 (main+4)") when an ELF is loaded.
func (s *TTYStepper) reportLocation() {
	dump, err := s.dbg.Inspect(0)
	if err != nil {
		return
	}
	if sym, ok := s.dbg.NearestSymbol(dump.PC); ok {
		fmt.Fprintf(os.Stderr, "pc=%#x (%s+%#x)\n", dump.PC, sym.Name, dump.PC-sym.Value)
		return
	}
	fmt.Fprintf(os.Stderr, "pc=%#x\n", dump.PC)
}

// printSymbols lists every symbol loaded via -d, for locating a breakpoint
// target by name before setting it.
func (s *TTYStepper) printSymbols() {
	for _, sym := range s.dbg.ListSymbols() {
		fmt.Fprintf(os.Stderr, "%#08x %s\n", sym.Value, sym.Name)
	}
}

// watchBreakpoints fires the Lua script attached to whichever breakpoint
// last halted hart 0, covering both 's' landing directly on a breakpoint
// and 'c' running until one is hit asynchronously.
func (s *TTYStepper) watchBreakpoints() {
	defer close(s.watchDone)
	if s.scripts == nil {
		return
	}
	ticker := time.NewTicker(breakpointPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if id, ok := s.dbg.TakeBreakpointHit(0); ok {
				if err := s.scripts.Fire(id, 0); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
			}
		}
	}
}

// Stop terminates the reader goroutine and restores stdin's prior mode.
func (s *TTYStepper) Stop() {
	s.stopped.Do(func() {
		close(s.stopCh)
	})
	<-s.done
	<-s.watchDone
	if s.oldTermState != nil {
		_ = term.Restore(s.fd, s.oldTermState)
		s.oldTermState = nil
	}
}
