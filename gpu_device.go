// gpu_device.go - GPU MMIO window and queue wiring
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
GPUDevice owns the GPU's MMIO window (spec §4.5): NumGPUQueues command-list
submission registers at GPUQueueBase, a CommandListEngine per queue, and the
resource tables and rasterizer those engines dispatch into. It mirrors the
Engine's device wiring pattern of pairing a fixed register window with a
background worker goroutine per queue (coprocessor_manager.go), narrowed
here to one dedicated goroutine per queue rather than a shared pool, since
queue order must be FIFO per spec §4.5.

A guest stores the address of a command-list header to one of the queue
registers; that store hands the address to the matching engine's Submit and
returns immediately. The actual command-list walk happens on the engine's
own goroutine, started by Run.
*/

package main

import (
	"context"
	"fmt"
)

type GPUDevice struct {
	res     *GPUResources
	handler *GPUCommandHandler
	engines [NumGPUQueues]*CommandListEngine
}

// NewGPUDevice builds the GPU's resource tables, command handler and one
// CommandListEngine per queue register, then maps the whole window (queue
// registers plus the resource-table command dispatch) onto mem.
func NewGPUDevice(mem *MemoryMap, ic *InterruptController, present PresentSink, logf func(string, ...any)) *GPUDevice {
	res := NewGPUResources()
	handler := NewGPUCommandHandler(res, mem, ic, present, logf)

	d := &GPUDevice{res: res, handler: handler}
	for i := 0; i < NumGPUQueues; i++ {
		d.engines[i] = NewCommandListEngine("gpu", mem, ic, IntGPU, handler, logf)
	}

	mem.MapDevice(&DeviceRegion{
		Name:       "gpu",
		Start:      GPUBase,
		End:        GPUBase + GPUWindowSize,
		WidthsMask: 1 << 4,
		OnRead:     d.onRead,
		OnWrite:    d.onWrite,
	})
	return d
}

func (d *GPUDevice) onRead(addr uint32, width int) (uint32, error) {
	return 0, nil
}

func (d *GPUDevice) onWrite(addr uint32, width int, val uint32) error {
	if addr >= GPUQueueBase && addr < GPUQueueBase+uint32(NumGPUQueues)*4 {
		q := (addr - GPUQueueBase) / 4
		d.engines[q].Submit(val)
		return nil
	}
	return nil
}

// SeedTexture configures texture id as a width x height D8x4/ImageContiguous
// surface and copies pixels directly into its backing store, bypassing the
// command-list queue entirely (SPEC_FULL.md §4.11's texture seed import:
// bootstrapping a texture from a packaged asset, not a guest-visible
// command). pixels must already be in D8x4/ImageContiguous RGBA8 order,
// the layout LoadTextureImage produces.
func (d *GPUDevice) SeedTexture(id, width, height int, pixels []byte) error {
	if !d.res.configureTexture(id, width, height, LayoutD8x4, ImageContiguous) {
		return fmt.Errorf("seed texture %d: id out of range", id)
	}
	t := &d.res.Textures[id]
	if len(pixels) != len(t.Data) {
		return fmt.Errorf("seed texture %d: got %d bytes, want %d for %dx%d", id, len(pixels), len(t.Data), width, height)
	}
	copy(t.Data, pixels)
	return nil
}

// SnapshotTexture returns a copy of texture id's current backing bytes
// (D8x4/ImageContiguous RGBA8) for the -dumptexture command-line option to
// write out via SaveTextureSnapshot.
func (d *GPUDevice) SnapshotTexture(id int) (width, height int, pixels []byte, ok bool) {
	if id < 0 || id >= maxTextures {
		return 0, 0, nil, false
	}
	t := &d.res.Textures[id]
	if !t.Allocated || t.PixelLayout != LayoutD8x4 || t.ImageLayout != ImageContiguous {
		return 0, 0, nil, false
	}
	out := make([]byte, len(t.Data))
	copy(out, t.Data)
	return t.Width, t.Height, out, true
}

// Run starts every queue engine's consumer goroutine; it returns once ctx
// is cancelled and all queues have drained their current list.
func (d *GPUDevice) Run(ctx context.Context) error {
	errs := make(chan error, NumGPUQueues)
	for _, e := range d.engines {
		go func(e *CommandListEngine) { errs <- e.Run(ctx) }(e)
	}
	var first error
	for i := 0; i < NumGPUQueues; i++ {
		if err := <-errs; err != nil && first == nil {
			first = err
		}
	}
	return first
}
