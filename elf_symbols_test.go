package main

import "testing"

func TestSymbolTableLookupAndAll(t *testing.T) {
	st := &SymbolTable{byName: map[string]Symbol{
		"main": {Name: "main", Value: 0x1000, Size: 0x20},
	}}
	st.byAddr = []Symbol{st.byName["main"]}

	sym, ok := st.Lookup("main")
	if !ok || sym.Value != 0x1000 {
		t.Fatalf("Lookup(main) = (%v, %v), want (0x1000, true)", sym, ok)
	}
	if _, ok := st.Lookup("nope"); ok {
		t.Fatal("Lookup of an unknown name should report false")
	}
	if all := st.All(); len(all) != 1 || all[0].Name != "main" {
		t.Fatalf("All() = %v, want a single main entry", all)
	}
}

func TestSymbolTableNearest(t *testing.T) {
	st := &SymbolTable{byAddr: []Symbol{
		{Name: "_start", Value: 0x1000, Size: 0x10},
		{Name: "main", Value: 0x1010, Size: 0x20},
	}}

	if _, ok := st.Nearest(0x0FFF); ok {
		t.Fatal("Nearest before the first symbol should report false")
	}
	sym, ok := st.Nearest(0x1005)
	if !ok || sym.Name != "_start" {
		t.Fatalf("Nearest(0x1005) = (%v, %v), want _start", sym, ok)
	}
	sym, ok = st.Nearest(0x1018)
	if !ok || sym.Name != "main" {
		t.Fatalf("Nearest(0x1018) = (%v, %v), want main", sym, ok)
	}
	// Past every symbol's start still resolves to the closest preceding one.
	sym, ok = st.Nearest(0x9999)
	if !ok || sym.Name != "main" {
		t.Fatalf("Nearest(0x9999) = (%v, %v), want main", sym, ok)
	}
}

func TestDebuggerNearestSymbolAndListSymbolsWithoutELF(t *testing.T) {
	dbg, _ := newTestDebugger(t)
	if _, ok := dbg.NearestSymbol(0x1000); ok {
		t.Fatal("NearestSymbol with no ELF loaded should report false")
	}
	if syms := dbg.ListSymbols(); syms != nil {
		t.Fatalf("ListSymbols with no ELF loaded = %v, want nil", syms)
	}
}

func TestDebuggerNearestSymbolAndListSymbolsWithLoadedTable(t *testing.T) {
	dbg, _ := newTestDebugger(t)
	dbg.symbols = &SymbolTable{
		byName: map[string]Symbol{"main": {Name: "main", Value: 0x1000, Size: 0x20}},
		byAddr: []Symbol{{Name: "main", Value: 0x1000, Size: 0x20}},
	}

	sym, ok := dbg.NearestSymbol(0x1004)
	if !ok || sym.Name != "main" {
		t.Fatalf("NearestSymbol(0x1004) = (%v, %v), want main", sym, ok)
	}
	syms := dbg.ListSymbols()
	if len(syms) != 1 || syms[0].Name != "main" {
		t.Fatalf("ListSymbols() = %v, want a single main entry", syms)
	}
}
