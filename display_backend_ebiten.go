//go:build !headless

// display_backend_ebiten.go - Ebiten window consuming present_texture frames
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
EbitenDisplay implements PresentSink (gpu_commands.go): each present_texture
command hands it a raw pixel snapshot, width/height and layout, which it
converts to RGBA8 and hands to an ebiten.Image on the next Draw. It also
polls the keyboard once per Update and feeds button state into an
InputDevice, the same Start/Update/Draw/Layout shape as the teacher's
EbitenOutput (video_backend_ebiten.go), generalised from a terminal
framebuffer to a GPU-presented texture and from a key-event callback to
level-sensitive button registers.
*/

package main

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

type EbitenDisplay struct {
	mu      sync.Mutex
	frame   []byte
	width   int
	height  int
	running bool

	window    *ebiten.Image
	input     *InputDevice
	vsyncChan chan struct{}
}

func NewEbitenDisplay(input *InputDevice) *EbitenDisplay {
	w, h := VideoRes512x384.Dimensions()
	return &EbitenDisplay{
		width:     w,
		height:    h,
		frame:     make([]byte, w*h*4),
		input:     input,
		vsyncChan: make(chan struct{}, 1),
	}
}

// Present implements PresentSink.
func (d *EbitenDisplay) Present(width, height int, layout PixelDataLayout, imageLayout ImageDataLayout, data []byte) {
	rgba := texturePixelsToRGBA(width, height, layout, imageLayout, data)
	d.mu.Lock()
	d.frame = rgba
	d.width = width
	d.height = height
	d.mu.Unlock()
}

// Start opens the window and runs the Ebiten game loop in its own
// goroutine, returning once the first frame has been drawn.
func (d *EbitenDisplay) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.mu.Unlock()

	ebiten.SetWindowSize(d.width*2, d.height*2)
	ebiten.SetWindowTitle("rvfm")
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)

	go func() {
		_ = ebiten.RunGame(d)
	}()
	<-d.vsyncChan
	return nil
}

func (d *EbitenDisplay) Stop() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// SetInput attaches the button-state device this display polls on Update.
func (d *EbitenDisplay) SetInput(input *InputDevice) {
	d.mu.Lock()
	d.input = input
	d.mu.Unlock()
}

var ebitenButtonKeys = map[InputID]ebiten.Key{
	InputUp:     ebiten.KeyArrowUp,
	InputDown:   ebiten.KeyArrowDown,
	InputLeft:   ebiten.KeyArrowLeft,
	InputRight:  ebiten.KeyArrowRight,
	InputA:      ebiten.KeyZ,
	InputB:      ebiten.KeyX,
	InputX:      ebiten.KeyA,
	InputY:      ebiten.KeyS,
	InputStart:  ebiten.KeyEnter,
	InputSelect: ebiten.KeyBackspace,
}

func (d *EbitenDisplay) Update() error {
	if ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	if !running {
		return ebiten.Termination
	}
	if d.input != nil {
		for id, key := range ebitenButtonKeys {
			d.input.SetPressed(id, ebiten.IsKeyPressed(key))
		}
	}
	return nil
}

func (d *EbitenDisplay) Draw(screen *ebiten.Image) {
	d.mu.Lock()
	if d.window == nil || d.window.Bounds().Dx() != d.width || d.window.Bounds().Dy() != d.height {
		d.window = ebiten.NewImage(d.width, d.height)
	}
	d.window.WritePixels(d.frame)
	d.mu.Unlock()
	screen.DrawImage(d.window, nil)

	select {
	case d.vsyncChan <- struct{}{}:
	default:
	}
}

func (d *EbitenDisplay) Layout(_, _ int) (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

// texturePixelsToRGBA converts a texture's raw backing bytes (in whatever
// PixelDataLayout/ImageDataLayout it was configured with) into a flat
// RGBA8 buffer suitable for ebiten.Image.WritePixels.
func texturePixelsToRGBA(width, height int, layout PixelDataLayout, imageLayout ImageDataLayout, data []byte) []byte {
	out := make([]byte, width*height*4)
	pixelBytes := layout.PixelBytes()
	compWidth := layout.ComponentWidth()
	compCount := layout.ComponentCount()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := imageLayout.Index(x, y, width) * pixelBytes
			if pixelBytes == 0 || idx+pixelBytes > len(data) {
				continue
			}
			var comp [4]byte
			for c := 0; c < compCount && c < 4; c++ {
				switch compWidth {
				case 8:
					comp[c] = data[idx+c]
				case 16:
					comp[c] = data[idx+c*2+1]
				default:
					comp[c] = data[idx+c*4+3]
				}
			}
			o := (y*width + x) * 4
			switch compCount {
			case 1:
				out[o], out[o+1], out[o+2], out[o+3] = comp[0], comp[0], comp[0], 0xFF
			case 2:
				out[o], out[o+1], out[o+2], out[o+3] = comp[0], comp[1], 0, 0xFF
			default:
				out[o], out[o+1], out[o+2], out[o+3] = comp[0], comp[1], comp[2], comp[3]
			}
		}
	}
	return out
}
