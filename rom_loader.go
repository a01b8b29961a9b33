// rom_loader.go - Flat ROM image loading
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
LoadROM reads a flat binary image from disk. There is no container
format (spec §2: "programs are loaded as flat ROM images"); the file's
bytes become hart 0's reset vector contents verbatim, the same way the
Engine's own cartridge loader (cartridge.go) treats a ROM file as an
opaque byte slice rather than parsing a header.
*/

package main

import (
	"fmt"
	"os"
)

// LoadROM reads path and validates it fits within the machine's ROM
// window (RamStart - RomStart bytes).
func LoadROM(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load ROM %q: %w", path, err)
	}
	if uint32(len(data)) > RamStart-RomStart {
		return nil, fmt.Errorf("ROM image %q is %d bytes, exceeds %d byte ROM window", path, len(data), RamStart-RomStart)
	}
	return data, nil
}
