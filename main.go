// main.go - Command-line entry point
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
)

// stringListFlag collects repeated occurrences of a flag, e.g.
// -break main -break 0x100.
type stringListFlag []string

func (s *stringListFlag) String() string { return strings.Join(*s, ",") }
func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	debugELF := flag.String("d", "", "load symbols from this ELF for debugger breakpoints-by-name")
	headful := flag.Bool("display", true, "open a display window (disable for headless runs)")
	interactive := flag.Bool("debug", false, "put stdin in raw mode for single-keystroke debugger control (s/c/h/r/b/y)")

	var breakTargets, breakScripts, seeds stringListFlag
	flag.Var(&breakTargets, "break", "set a breakpoint at a symbol (requires -d) or 0x-prefixed address; may repeat")
	flag.Var(&breakScripts, "breakscript", "target=script.lua: set a breakpoint and attach a Lua action to it; may repeat")
	flag.Var(&seeds, "seed", "id:image.png (or .bmp): seed GPU texture id from a decoded image before boot; may repeat")
	dumpTexture := flag.String("dumptexture", "", "id:path.png: snapshot a texture to disk once the machine stops")

	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: rvfm [-d <elf>] [-debug] [-break target] [-breakscript target=file.lua] [-seed id:image] [-dumptexture id:path] <rom>")
		os.Exit(1)
	}

	rom, err := LoadROM(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var display *EbitenDisplay
	var present PresentSink
	if *headful {
		display = NewEbitenDisplay(nil)
		present = display
	}

	logf := func(format string, args ...any) { fmt.Fprintf(os.Stderr, format+"\n", args...) }

	m, err := NewMachine(rom, present, os.Stdout, logf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if display != nil {
		display.SetInput(m.Input())
	}

	if *debugELF != "" {
		if err := m.Debugger().LoadELF(*debugELF); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if err := seedTextures(m, seeds); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	scripts := NewScriptedBreakpoints(m.Debugger())
	if err := setBreakpoints(m.Debugger(), scripts, breakTargets, breakScripts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var tty *TTYStepper
	if *interactive {
		tty = NewTTYStepper(m.Debugger(), scripts)
		if err := tty.Start(); err != nil {
			fmt.Fprintln(os.Stderr, "debug mode disabled:", err)
			tty = nil
		} else {
			defer tty.Stop()
		}
	}

	audio, err := NewOtoPlayer(spuSampleRate)
	if err != nil {
		fmt.Fprintln(os.Stderr, "audio disabled:", err)
	} else {
		m.AttachAudio(audio)
	}

	if display != nil {
		m.AttachDisplay(display)
		if err := display.Start(); err != nil {
			fmt.Fprintln(os.Stderr, "display disabled:", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runErr := m.Run(ctx)

	if *dumpTexture != "" {
		if err := dumpTextureSnapshot(m, *dumpTexture); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, "machine stopped:", runErr)
		os.Exit(1)
	}
}

// seedTextures parses "id:path" specs and loads each into the machine's
// GPU texture table before boot.
func seedTextures(m *Machine, specs []string) error {
	for _, spec := range specs {
		idStr, path, ok := strings.Cut(spec, ":")
		if !ok {
			return fmt.Errorf("invalid -seed %q: want id:path", spec)
		}
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return fmt.Errorf("invalid -seed %q: %w", spec, err)
		}
		width, height, pixels, err := LoadTextureImage(path)
		if err != nil {
			return err
		}
		if err := m.SeedTexture(id, width, height, pixels); err != nil {
			return err
		}
	}
	return nil
}

// dumpTextureSnapshot parses an "id:path" -dumptexture spec and writes the
// named texture to disk as a PNG.
func dumpTextureSnapshot(m *Machine, spec string) error {
	idStr, path, ok := strings.Cut(spec, ":")
	if !ok {
		return fmt.Errorf("invalid -dumptexture %q: want id:path", spec)
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return fmt.Errorf("invalid -dumptexture %q: %w", spec, err)
	}
	width, height, pixels, ok := m.SnapshotTexture(id)
	if !ok {
		return fmt.Errorf("dumptexture: texture %d not configured", id)
	}
	return SaveTextureSnapshot(path, width, height, pixels)
}

// resolveBreakTarget sets a breakpoint at a literal 0x-prefixed address or,
// failing that, a symbol name resolved against the debugger's loaded ELF.
func resolveBreakTarget(dbg *Debugger, target string) (int, error) {
	if hex, ok := strings.CutPrefix(target, "0x"); ok {
		addr, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid breakpoint address %q: %w", target, err)
		}
		return dbg.SetBreakpointAt(uint32(addr)), nil
	}
	return dbg.SetBreakpointAtSymbol(target)
}

// setBreakpoints applies -break and -breakscript specs against dbg,
// attaching each -breakscript's Lua source to its newly created breakpoint.
func setBreakpoints(dbg *Debugger, scripts *ScriptedBreakpoints, breakTargets, breakScripts []string) error {
	for _, target := range breakTargets {
		if _, err := resolveBreakTarget(dbg, target); err != nil {
			return err
		}
	}
	for _, spec := range breakScripts {
		target, path, ok := strings.Cut(spec, "=")
		if !ok {
			return fmt.Errorf("invalid -breakscript %q: want target=file.lua", spec)
		}
		id, err := resolveBreakTarget(dbg, target)
		if err != nil {
			return err
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("-breakscript %q: %w", spec, err)
		}
		scripts.Attach(id, string(src))
	}
	return nil
}
