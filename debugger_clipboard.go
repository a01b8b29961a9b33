// debugger_clipboard.go - copy register dumps / disassembly to the system clipboard
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
CopyRegisterDump and CopyBreakpointList format debugger inspection output
and push it to the system clipboard via golang.design/x/clipboard, the
same library the teacher's ebiten backend uses for paste support
(video_backend_ebiten.go's handleClipboardPaste).
*/

package main

import (
	"fmt"
	"strings"
	"sync"

	"golang.design/x/clipboard"
)

var clipboardOnce sync.Once
var clipboardOK bool

func ensureClipboard() bool {
	clipboardOnce.Do(func() {
		clipboardOK = clipboard.Init() == nil
	})
	return clipboardOK
}

// CopyRegisterDump formats hartID's register snapshot and writes it to the
// system clipboard. It reports whether the clipboard was available.
func (d *Debugger) CopyRegisterDump(hartID int) (bool, error) {
	dump, err := d.Inspect(hartID)
	if err != nil {
		return false, err
	}
	if !ensureClipboard() {
		return false, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "hart %d  pc=%#010x  state=%v\n", hartID, dump.PC, dump.State)
	for i := 0; i < 32; i += 4 {
		fmt.Fprintf(&b, "x%-2d=%#010x x%-2d=%#010x x%-2d=%#010x x%-2d=%#010x\n",
			i, dump.X[i], i+1, dump.X[i+1], i+2, dump.X[i+2], i+3, dump.X[i+3])
	}
	fmt.Fprintf(&b, "mstatus=%#010x mepc=%#010x mcause=%#010x\n", dump.MStatus, dump.MEPC, dump.MCause)

	clipboard.Write(clipboard.FmtText, []byte(b.String()))
	return true, nil
}

// CopyBreakpointList formats the breakpoint table and writes it to the
// system clipboard.
func (d *Debugger) CopyBreakpointList() bool {
	if !ensureClipboard() {
		return false
	}
	var b strings.Builder
	for _, bp := range d.ListBreakpoints() {
		label := bp.Symbol
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(&b, "#%d addr=%#010x symbol=%s enabled=%v\n", bp.ID, bp.Address, label, bp.Enabled)
	}
	clipboard.Write(clipboard.FmtText, []byte(b.String()))
	return true
}
