//go:build headless

// display_backend_headless.go - no-op PresentSink for headless/test builds
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

package main

import "sync"

// EbitenDisplay is stubbed out under the headless build tag, matching
// audio_backend_headless.go's pattern: the type name stays the same so
// machine.go does not need a build-tag switch of its own.
type EbitenDisplay struct {
	mu     sync.Mutex
	width  int
	height int
	frame  []byte
}

func NewEbitenDisplay(input *InputDevice) *EbitenDisplay {
	w, h := VideoRes512x384.Dimensions()
	return &EbitenDisplay{width: w, height: h}
}

func (d *EbitenDisplay) Present(width, height int, layout PixelDataLayout, imageLayout ImageDataLayout, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height = width, height
	d.frame = data
}

func (d *EbitenDisplay) Start() error { return nil }
func (d *EbitenDisplay) Stop()        {}

// SetInput attaches the button-state device this display would poll on
// Update in a headful build; unused headlessly.
func (d *EbitenDisplay) SetInput(input *InputDevice) {}
