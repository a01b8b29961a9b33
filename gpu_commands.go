// gpu_commands.go - GPU command-list opcode table
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
GPUCommandHandler implements OpcodeHandler for the GPU device queue,
dispatching the commands spec §4.6 names. The byte values assigned to
each opcode, and the exact wire layout of upload_graphics_pipeline_state's
struct, are not fixed by spec.md (only the shader bytecode opcodes in §6
are) — they are an implementation choice recorded in DESIGN.md, the same
way the command-list engine's write_flag fields are.

Resource id out-of-range or unallocated: per spec §4.10, the command is a
no-op with a diagnostic, never a protocol error; only a short/malformed
body is treated as a command-list protocol error (kind 2, spec §7).
*/

package main

import (
	"fmt"
	"sync"
)

const (
	GPUOpConfigureBuffer            = 0x01
	GPUOpUploadBuffer               = 0x02
	GPUOpConfigureTexture           = 0x03
	GPUOpUploadShader               = 0x04
	GPUOpUploadGraphicsPipelineState = 0x05
	GPUOpSetConstantSamplerUnorm8   = 0x06
	GPUOpSetConstantSamplerF32      = 0x07
	GPUOpClearTexture               = 0x08
	GPUOpDrawGraphicsPipeline       = 0x09
	GPUOpPresentTexture             = 0x0A
	GPUOpSetVideoMode               = 0x0B
)

type VideoResolution int

const (
	VideoRes512x384 VideoResolution = iota
	VideoRes256x192
)

func (v VideoResolution) Dimensions() (w, h int) {
	if v == VideoRes256x192 {
		return 256, 192
	}
	return 512, 384
}

type VideoMode struct {
	Resolution     VideoResolution
	Backgrounds    bool
	Sprites        bool
	Triangles      bool
}

// PresentSink receives a snapshot of a presented texture's raw pixel
// bytes along with its dimensions and pixel layout; display_backend_ebiten.go
// implements this to hand frames to the host window.
type PresentSink interface {
	Present(width, height int, layout PixelDataLayout, imageLayout ImageDataLayout, data []byte)
}

type GPUCommandHandler struct {
	mu        sync.Mutex // serialises Execute across the GPU's queue goroutines
	res       *GPUResources
	mem       *MemoryMap
	rast      *Rasterizer
	ic        *InterruptController
	present   PresentSink
	videoMode VideoMode
	logf      func(string, ...any)
}

func NewGPUCommandHandler(res *GPUResources, mem *MemoryMap, ic *InterruptController, present PresentSink, logf func(string, ...any)) *GPUCommandHandler {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &GPUCommandHandler{
		res:     res,
		mem:     mem,
		rast:    NewRasterizer(res, mem),
		ic:      ic,
		present: present,
		logf:    logf,
	}
}

func needLen(body []byte, n int, name string) error {
	if len(body) < n {
		return fmt.Errorf("%s: short command (need %d bytes, have %d)", name, n, len(body))
	}
	return nil
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

func (h *GPUCommandHandler) Execute(opcode byte, body []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch opcode {
	case GPUOpConfigureBuffer:
		if err := needLen(body, 6, "configure_buffer"); err != nil {
			return 0, err
		}
		id := int(le16(body[0:2]))
		size := int(le32(body[2:6]))
		if !h.res.configureBuffer(id, size) {
			h.logf("configure_buffer: id %d or size %d out of range", id, size)
		}
		return 6, nil

	case GPUOpUploadBuffer:
		if err := needLen(body, 14, "upload_buffer"); err != nil {
			return 0, err
		}
		id := int(le16(body[0:2]))
		srcPtr := le32(body[2:6])
		length := le32(body[6:10])
		offset := le32(body[10:14])
		if id < 0 || id >= maxBuffers || !h.res.Buffers[id].Allocated {
			h.logf("upload_buffer: id %d not allocated", id)
			return 14, nil
		}
		data, err := h.mem.ReadBytes(srcPtr, length)
		if err != nil {
			h.logf("upload_buffer: source unreadable: %v", err)
			return 14, nil
		}
		buf := h.res.Buffers[id].Data
		if int(offset)+len(data) > len(buf) {
			h.logf("upload_buffer: write would exceed buffer %d bounds", id)
			return 14, nil
		}
		copy(buf[offset:], data)
		return 14, nil

	case GPUOpConfigureTexture:
		if err := needLen(body, 8, "configure_texture"); err != nil {
			return 0, err
		}
		id := int(le16(body[0:2]))
		width := int(le16(body[2:4]))
		height := int(le16(body[4:6]))
		pixelLayout := PixelDataLayout(body[6])
		imageLayout := ImageDataLayout(body[7])
		if !h.res.configureTexture(id, width, height, pixelLayout, imageLayout) {
			h.logf("configure_texture: id %d out of range", id)
		}
		return 8, nil

	case GPUOpUploadShader:
		if err := needLen(body, 11, "upload_shader"); err != nil {
			return 0, err
		}
		id := int(le16(body[0:2]))
		kind := ShaderKind(body[2])
		srcPtr := le32(body[3:7])
		length := le32(body[7:11])
		code, err := h.mem.ReadBytes(srcPtr, length)
		if err != nil {
			h.logf("upload_shader: source unreadable: %v", err)
			return 11, nil
		}
		if !h.res.uploadShader(id, kind, code) {
			h.logf("upload_shader: id %d out of range", id)
		}
		return 11, nil

	case GPUOpUploadGraphicsPipelineState:
		if err := needLen(body, 6, "upload_graphics_pipeline_state"); err != nil {
			return 0, err
		}
		id := int(le16(body[0:2]))
		structPtr := le32(body[2:6])
		state, err := h.parsePipelineState(structPtr)
		if err != nil {
			h.logf("upload_graphics_pipeline_state: %v", err)
			return 6, nil
		}
		if !h.res.uploadPipelineState(id, state) {
			h.logf("upload_graphics_pipeline_state: id %d out of range", id)
		}
		return 6, nil

	case GPUOpSetConstantSamplerUnorm8:
		if err := needLen(body, 6, "set_constant_sampler_unorm8"); err != nil {
			return 0, err
		}
		id := int(le16(body[0:2]))
		value := pixelsFromUNorm8([4]uint8{body[2], body[3], body[4], body[5]})
		if !h.res.setConstantSampler(id, value) {
			h.logf("set_constant_sampler_unorm8: id %d out of range", id)
		}
		return 6, nil

	case GPUOpSetConstantSamplerF32:
		if err := needLen(body, 18, "set_constant_sampler_f32"); err != nil {
			return 0, err
		}
		id := int(le16(body[0:2]))
		var v [4]float32
		for i := 0; i < 4; i++ {
			v[i] = float32frombits(le32(body[2+i*4 : 6+i*4]))
		}
		if !h.res.setConstantSampler(id, AbstractFromF32(v)) {
			h.logf("set_constant_sampler_f32: id %d out of range", id)
		}
		return 18, nil

	case GPUOpClearTexture:
		if err := needLen(body, 4, "clear_texture"); err != nil {
			return 0, err
		}
		texID := int(le16(body[0:2]))
		samplerID := int(le16(body[2:4]))
		if !h.res.clearTexture(texID, samplerID) {
			h.logf("clear_texture: tex %d / sampler %d not allocated", texID, samplerID)
		}
		return 4, nil

	case GPUOpDrawGraphicsPipeline:
		if err := needLen(body, 16, "draw_graphics_pipeline"); err != nil {
			return 0, err
		}
		stateID := int(le16(body[0:2]))
		vshaderID := int(le16(body[2:4]))
		fshaderID := int(le16(body[4:6]))
		vertexCount := int(le32(body[6:10]))
		clipX := int(le16(body[10:12]))
		clipY := int(le16(body[12:14]))
		clipW := int(le16(body[14:16]))
		// clipH is packed as a 5th u16; if the body ends before it, clipH falls back to clipW.
		clipH := clipW
		if len(body) >= 18 {
			clipH = int(le16(body[16:18]))
		}
		if stateID < 0 || stateID >= maxPipelineStates || !h.res.Pipelines[stateID].Allocated {
			h.logf("draw_graphics_pipeline: state %d not allocated", stateID)
			return 18, nil
		}
		state := h.res.Pipelines[stateID]
		clip := Rect{X: clipX, Y: clipY, W: clipW, H: clipH}
		if err := h.rast.DrawGraphicsPipeline(stateID, vshaderID, fshaderID, vertexCount, clip, state.VertexInputs, state.Outputs, state.Constants, state.VaryingModes); err != nil {
			return 0, err
		}
		return 18, nil

	case GPUOpPresentTexture:
		if err := needLen(body, 9, "present_texture"); err != nil {
			return 0, err
		}
		texID := int(le16(body[0:2]))
		completionPtr := le32(body[2:6])
		interruptFlag := body[6]
		_ = body[7:9] // reserved
		if texID < 0 || texID >= maxTextures || !h.res.Textures[texID].Allocated {
			h.logf("present_texture: id %d not allocated", texID)
			return 9, nil
		}
		t := &h.res.Textures[texID]
		if h.present != nil {
			snapshot := make([]byte, len(t.Data))
			copy(snapshot, t.Data)
			h.present.Present(t.Width, t.Height, t.PixelLayout, t.ImageLayout, snapshot)
		}
		if err := h.mem.Write32(completionPtr, 1); err != nil {
			h.logf("present_texture: completion write failed: %v", err)
		}
		if interruptFlag&1 != 0 {
			h.ic.Raise(0, IntGPU)
		}
		return 9, nil

	case GPUOpSetVideoMode:
		if err := needLen(body, 4, "set_video_mode"); err != nil {
			return 0, err
		}
		h.videoMode = VideoMode{
			Resolution:  VideoResolution(body[0]),
			Backgrounds: body[1] != 0,
			Sprites:     body[2] != 0,
			Triangles:   body[3] != 0,
		}
		return 4, nil

	default:
		return 0, fmt.Errorf("unknown GPU opcode %#x", opcode)
	}
}

// parsePipelineState decodes the upload_graphics_pipeline_state struct
// pointed to by ptr. Layout (little-endian): depth enabled(u8), compare
// fn(u8), depth write(u8), reserved(u8), depth texture id(u16),
// reserved(u16); vertex input count(u16), reserved(u16), vertex inputs
// ptr(u32); fragment output count(u16), reserved(u16), fragment outputs
// ptr(u32); constant count(u16), reserved(u16), constants ptr(u32);
// 16 bytes of per-register varying interpolation mode.
func (h *GPUCommandHandler) parsePipelineState(ptr uint32) (PipelineState, error) {
	const structSize = 48
	raw, err := h.mem.ReadBytes(ptr, structSize)
	if err != nil {
		return PipelineState{}, fmt.Errorf("pipeline state struct unreadable: %w", err)
	}

	var state PipelineState
	state.Depth = DepthState{
		Enabled:   raw[0] != 0,
		CompareFn: DepthCompareFn(raw[1]),
		Write:     raw[2] != 0,
		TextureID: int(le16(raw[4:6])),
	}

	vertexInputCount := int(le16(raw[8:10]))
	vertexInputsPtr := le32(raw[12:16])
	fragmentOutputCount := int(le16(raw[16:18]))
	fragmentOutputsPtr := le32(raw[20:24])
	constantCount := int(le16(raw[24:26]))
	constantsPtr := le32(raw[28:32])
	copy(state.VaryingModes[:], interpolationModesFrom(raw[32:48]))

	if vertexInputCount > 0 {
		data, err := h.mem.ReadBytes(vertexInputsPtr, uint32(vertexInputCount*16))
		if err != nil {
			return PipelineState{}, fmt.Errorf("vertex input assignments unreadable: %w", err)
		}
		for i := 0; i < vertexInputCount; i++ {
			b := data[i*16 : i*16+16]
			state.VertexInputs = append(state.VertexInputs, VertexInputAssignment{
				BufferID:    int(le16(b[0:2])),
				Register:    int(le16(b[2:4])),
				Offset:      le32(b[4:8]),
				Stride:      le32(b[8:12]),
				Cardinality: int(le16(b[12:14])),
			})
		}
	}

	if fragmentOutputCount > 0 {
		data, err := h.mem.ReadBytes(fragmentOutputsPtr, uint32(fragmentOutputCount*4))
		if err != nil {
			return PipelineState{}, fmt.Errorf("fragment output assignments unreadable: %w", err)
		}
		for i := 0; i < fragmentOutputCount; i++ {
			b := data[i*4 : i*4+4]
			state.Outputs = append(state.Outputs, FragmentOutputAssignment{
				Register:  int(le16(b[0:2])),
				TextureID: int(le16(b[2:4])),
			})
		}
	}

	if constantCount > 0 {
		data, err := h.mem.ReadBytes(constantsPtr, uint32(constantCount*12))
		if err != nil {
			return PipelineState{}, fmt.Errorf("constant bindings unreadable: %w", err)
		}
		for i := 0; i < constantCount; i++ {
			b := data[i*12 : i*12+12]
			state.Constants = append(state.Constants, ConstantBinding{
				BufferID:    int(le16(b[0:2])),
				Register:    int(le16(b[2:4])),
				Offset:      le32(b[4:8]),
				Cardinality: int(le16(b[8:10])),
			})
		}
	}

	return state, nil
}

func interpolationModesFrom(raw []byte) []Interpolation {
	out := make([]Interpolation, len(raw))
	for i, b := range raw {
		out[i] = Interpolation(b)
	}
	return out
}
