// gpu_resources.go - Fixed-capacity GPU resource tables
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
GPUResources' Textures/Buffers/Shaders/Samplers/Pipelines tables are
fixed-size slot arrays keyed by the small integer ids the guest SDK treats
as opaque handles (spec §9: "the SDK treats IDs as opaque handles ... the
table's allocator lives on the device thread"). Slots are mutated by GPU
command execution, which gpu_device.go runs on one goroutine per queue;
GPUCommandHandler.Execute serialises those goroutines with a lock, and
nothing here does any locking of its own.
*/

package main

import "math"

const (
	maxTextures        = 64
	maxBuffers         = 256
	maxShaders         = 128
	maxConstSamplers   = 64
	maxPipelineStates  = 64
	maxBufferBytes     = 128 * 1024
)

type Texture struct {
	Allocated  bool
	Width      int
	Height     int
	PixelLayout PixelDataLayout
	ImageLayout ImageDataLayout
	Data       []byte
}

func (t *Texture) backingSize() int {
	return t.PixelLayout.PixelBytes() * t.Width * t.Height
}

type Buffer struct {
	Allocated bool
	Data      []byte
}

type ShaderKind int

const (
	ShaderVertex ShaderKind = iota
	ShaderFragment
)

type Shader struct {
	Allocated bool
	Kind      ShaderKind
	Code      []byte
}

type ConstantSampler struct {
	Allocated bool
	Value     AbstractPixelData
}

// DepthCompareFn names the comparison the rasterizer applies between an
// incoming fragment's depth and the depth buffer's stored value.
type DepthCompareFn int

const (
	DepthAlways DepthCompareFn = iota
	DepthLess
	DepthLessEqual
	DepthGreater
	DepthGreaterEqual
	DepthEqual
	DepthNever
)

type DepthState struct {
	Enabled   bool
	CompareFn DepthCompareFn
	Write     bool
	TextureID int
}

// PipelineState points to a vertex state, a fragment state and a
// rasterizer state (spec §3); here those are flattened into the fields a
// draw_graphics_pipeline call needs: how vertex inputs and the constant
// bank are populated, where fragment outputs land, each varying's
// interpolation mode, and the depth test configuration.
type PipelineState struct {
	Allocated    bool
	VertexInputs []VertexInputAssignment
	Outputs      []FragmentOutputAssignment
	Constants    []ConstantBinding
	VaryingModes [regsPerClass]Interpolation
	Depth        DepthState
}

type GPUResources struct {
	Textures  [maxTextures]Texture
	Buffers   [maxBuffers]Buffer
	Shaders   [maxShaders]Shader
	Samplers  [maxConstSamplers]ConstantSampler
	Pipelines [maxPipelineStates]PipelineState
}

func NewGPUResources() *GPUResources {
	return &GPUResources{}
}

func (r *GPUResources) configureTexture(id int, width, height int, pixelLayout PixelDataLayout, imageLayout ImageDataLayout) bool {
	if id < 0 || id >= maxTextures {
		return false
	}
	t := &r.Textures[id]
	t.Allocated = true
	t.Width, t.Height = width, height
	t.PixelLayout, t.ImageLayout = pixelLayout, imageLayout
	t.Data = make([]byte, t.backingSize())
	return true
}

func (r *GPUResources) configureBuffer(id int, size int) bool {
	if id < 0 || id >= maxBuffers || size < 0 || size > maxBufferBytes {
		return false
	}
	r.Buffers[id] = Buffer{Allocated: true, Data: make([]byte, size)}
	return true
}

func (r *GPUResources) uploadShader(id int, kind ShaderKind, code []byte) bool {
	if id < 0 || id >= maxShaders {
		return false
	}
	cp := make([]byte, len(code))
	copy(cp, code)
	r.Shaders[id] = Shader{Allocated: true, Kind: kind, Code: cp}
	return true
}

func (r *GPUResources) setConstantSampler(id int, value AbstractPixelData) bool {
	if id < 0 || id >= maxConstSamplers {
		return false
	}
	r.Samplers[id] = ConstantSampler{Allocated: true, Value: value}
	return true
}

func (r *GPUResources) uploadPipelineState(id int, state PipelineState) bool {
	if id < 0 || id >= maxPipelineStates {
		return false
	}
	state.Allocated = true
	r.Pipelines[id] = state
	return true
}

// clearTexture broadcasts sampler's value to every pixel of texture id,
// converting through the texture's PixelDataLayout (spec §4.6, §8).
func (r *GPUResources) clearTexture(texID, samplerID int) bool {
	if texID < 0 || texID >= maxTextures || samplerID < 0 || samplerID >= maxConstSamplers {
		return false
	}
	t := &r.Textures[texID]
	s := &r.Samplers[samplerID]
	if !t.Allocated || !s.Allocated {
		return false
	}
	pixel := packPixel(s.Value, t.PixelLayout)
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			idx := t.ImageLayout.Index(x, y, t.Width) * len(pixel)
			copy(t.Data[idx:idx+len(pixel)], pixel)
		}
	}
	return true
}

// packPixel encodes an AbstractPixelData value into the raw little-endian
// bytes of one pixel in the given layout.
func packPixel(v AbstractPixelData, layout PixelDataLayout) []byte {
	n := layout.ComponentCount()
	width := layout.ComponentWidth()
	out := make([]byte, layout.PixelBytes())

	switch width {
	case 8:
		comps := v.AsUNorm32()
		for i := 0; i < n; i++ {
			out[i] = byte(comps[i] >> 24)
		}
	case 16:
		comps := v.AsUNorm32()
		for i := 0; i < n; i++ {
			val := uint16(comps[i] >> 16)
			out[i*2] = byte(val)
			out[i*2+1] = byte(val >> 8)
		}
	case 32:
		comps := v.AsF32()
		for i := 0; i < n; i++ {
			bits := float32bits(comps[i])
			out[i*4] = byte(bits)
			out[i*4+1] = byte(bits >> 8)
			out[i*4+2] = byte(bits >> 16)
			out[i*4+3] = byte(bits >> 24)
		}
	}
	return out
}

func float32bits(f float32) uint32 {
	return math.Float32bits(f)
}

func float32frombits(b uint32) float32 {
	return math.Float32frombits(b)
}
