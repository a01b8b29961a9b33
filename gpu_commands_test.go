package main

import "testing"

func newTestGPUCommandHandler(t *testing.T) (*GPUCommandHandler, *MemoryMap) {
	t.Helper()
	mem, err := NewMemoryMap(nil)
	if err != nil {
		t.Fatalf("NewMemoryMap: %v", err)
	}
	ic := NewInterruptController()
	res := NewGPUResources()
	return NewGPUCommandHandler(res, mem, ic, nil, nil), mem
}

func TestGPUCommandConfigureAndUploadBuffer(t *testing.T) {
	h, mem := newTestGPUCommandHandler(t)

	cfgBody := append(le16Bytes(0), le32Bytes(16)...)
	if _, err := h.Execute(GPUOpConfigureBuffer, cfgBody); err != nil {
		t.Fatalf("configure_buffer: %v", err)
	}
	if !h.res.Buffers[0].Allocated || len(h.res.Buffers[0].Data) != 16 {
		t.Fatalf("buffer 0 not configured as expected: %+v", h.res.Buffers[0])
	}

	const srcAddr = RamStart
	src := []byte{1, 2, 3, 4}
	if err := mem.WriteBytes(srcAddr, src); err != nil {
		t.Fatalf("write source: %v", err)
	}

	var uploadBody []byte
	uploadBody = append(uploadBody, le16Bytes(0)...)
	uploadBody = append(uploadBody, le32Bytes(srcAddr)...)
	uploadBody = append(uploadBody, le32Bytes(4)...)
	uploadBody = append(uploadBody, le32Bytes(2)...) // offset 2
	if _, err := h.Execute(GPUOpUploadBuffer, uploadBody); err != nil {
		t.Fatalf("upload_buffer: %v", err)
	}
	got := h.res.Buffers[0].Data[2:6]
	for i, want := range src {
		if got[i] != want {
			t.Fatalf("buffer[%d] = %d, want %d", 2+i, got[i], want)
		}
	}
}

func TestGPUCommandUploadShader(t *testing.T) {
	h, mem := newTestGPUCommandHandler(t)
	const srcAddr = RamStart
	code := []byte{OpScalarPush, RegClassConstant, 0, OpScalarPop, RegClassLocal, 0}
	if err := mem.WriteBytes(srcAddr, code); err != nil {
		t.Fatalf("write shader source: %v", err)
	}

	var body []byte
	body = append(body, le16Bytes(0)...)
	body = append(body, byte(ShaderVertex))
	body = append(body, le32Bytes(srcAddr)...)
	body = append(body, le32Bytes(uint32(len(code)))...)
	if _, err := h.Execute(GPUOpUploadShader, body); err != nil {
		t.Fatalf("upload_shader: %v", err)
	}
	if !h.res.Shaders[0].Allocated || len(h.res.Shaders[0].Code) != len(code) {
		t.Fatalf("shader 0 not uploaded as expected: %+v", h.res.Shaders[0])
	}
}

func TestGPUCommandUploadGraphicsPipelineStateParsesAttachments(t *testing.T) {
	h, mem := newTestGPUCommandHandler(t)

	const vertexInputsAddr = RamStart + 0x1000
	const structAddr = RamStart

	vi := make([]byte, 16)
	copy(vi[0:2], le16Bytes(0))  // BufferID
	copy(vi[2:4], le16Bytes(2))  // Register
	copy(vi[4:8], le32Bytes(0))  // Offset
	copy(vi[8:12], le32Bytes(16)) // Stride
	copy(vi[12:14], le16Bytes(4)) // Cardinality
	if err := mem.WriteBytes(vertexInputsAddr, vi); err != nil {
		t.Fatalf("write vertex input: %v", err)
	}

	raw := make([]byte, 48)
	raw[0] = 1 // depth enabled
	raw[1] = byte(DepthLess)
	raw[2] = 1 // depth write
	copy(raw[4:6], le16Bytes(3)) // depth texture id
	copy(raw[8:10], le16Bytes(1)) // vertex input count
	copy(raw[12:16], le32Bytes(vertexInputsAddr))
	if err := mem.WriteBytes(structAddr, raw); err != nil {
		t.Fatalf("write pipeline struct: %v", err)
	}

	var body []byte
	body = append(body, le16Bytes(0)...)
	body = append(body, le32Bytes(structAddr)...)
	if _, err := h.Execute(GPUOpUploadGraphicsPipelineState, body); err != nil {
		t.Fatalf("upload_graphics_pipeline_state: %v", err)
	}

	state := h.res.Pipelines[0]
	if !state.Allocated {
		t.Fatal("pipeline state 0 should be allocated")
	}
	if !state.Depth.Enabled || state.Depth.CompareFn != DepthLess || !state.Depth.Write || state.Depth.TextureID != 3 {
		t.Fatalf("depth state mismatch: %+v", state.Depth)
	}
	if len(state.VertexInputs) != 1 {
		t.Fatalf("expected 1 vertex input assignment, got %d", len(state.VertexInputs))
	}
	vin := state.VertexInputs[0]
	if vin.BufferID != 0 || vin.Register != 2 || vin.Stride != 16 || vin.Cardinality != 4 {
		t.Fatalf("vertex input assignment mismatch: %+v", vin)
	}
}
