// elf_symbols.go - Debugger symbol table, loaded from an external ELF
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
LoadSymbols reads an ELF file's symbol table using the standard library's
debug/elf package (spec §4.9: "a symbol table loaded from the external
ELF, treated as external input"). None of the retrieved example repos
parse ELF themselves, and no third-party ELF reader appears anywhere in
the corpus's go.mod files, so this is the one place SPEC_FULL.md's "name
every stdlib use" rule applies: debug/elf is the idiomatic, canonical way
to read an ELF symbol table in Go, and introducing a third-party
replacement here would not be grounded in anything the corpus shows.
*/

package main

import (
	"debug/elf"
	"fmt"
	"sort"
)

// Symbol is one named address from the guest ELF's symbol table.
type Symbol struct {
	Name  string
	Value uint32
	Size  uint32
}

// SymbolTable is a name- and address-indexed view over an ELF's function
// and object symbols.
type SymbolTable struct {
	byName  map[string]Symbol
	byAddr  []Symbol // sorted by Value, for nearest-symbol lookup
}

// LoadSymbols opens path and extracts every STT_FUNC/STT_OBJECT symbol
// with a nonzero address.
func LoadSymbols(path string) (*SymbolTable, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ELF %q: %w", path, err)
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("read symbols from %q: %w", path, err)
	}

	t := &SymbolTable{byName: make(map[string]Symbol)}
	for _, s := range syms {
		kind := elf.ST_TYPE(s.Info)
		if kind != elf.STT_FUNC && kind != elf.STT_OBJECT {
			continue
		}
		if s.Value == 0 || s.Name == "" {
			continue
		}
		sym := Symbol{Name: s.Name, Value: uint32(s.Value), Size: uint32(s.Size)}
		t.byName[s.Name] = sym
		t.byAddr = append(t.byAddr, sym)
	}
	sort.Slice(t.byAddr, func(i, j int) bool { return t.byAddr[i].Value < t.byAddr[j].Value })
	return t, nil
}

// Lookup resolves a symbol by exact name.
func (t *SymbolTable) Lookup(name string) (Symbol, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// Nearest returns the symbol whose range [Value, Value+Size) contains
// addr, or the closest preceding symbol if none contains it exactly.
func (t *SymbolTable) Nearest(addr uint32) (Symbol, bool) {
	if len(t.byAddr) == 0 {
		return Symbol{}, false
	}
	i := sort.Search(len(t.byAddr), func(i int) bool { return t.byAddr[i].Value > addr })
	if i == 0 {
		return Symbol{}, false
	}
	return t.byAddr[i-1], true
}

// All returns every loaded symbol in address order.
func (t *SymbolTable) All() []Symbol {
	return t.byAddr
}
