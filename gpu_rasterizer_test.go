package main

import "testing"

func TestRasterizerFillsTriangleWithConstantColor(t *testing.T) {
	res := NewGPUResources()
	mem, _ := NewMemoryMap(nil)
	res.configureTexture(0, 4, 4, LayoutD8x4, ImageContiguous)
	res.Pipelines[0] = PipelineState{Allocated: true}

	// Vertex shader: pull the per-vertex position out of Input register 2
	// (bound by VertexInputAssignment) straight into VertexPosition.
	vshader := []byte{
		OpVectorPush, RegClassInput, 2,
		OpVectorPop, RegClassOutput, BuiltinVertexPosition,
	}
	res.uploadShader(0, ShaderVertex, vshader)

	// Fragment shader: solid color from Constant register 0 into Output 0.
	fshader := []byte{
		OpVectorPush, RegClassConstant, 0,
		OpVectorPop, RegClassOutput, 0,
	}
	res.uploadShader(1, ShaderFragment, fshader)

	res.configureBuffer(0, 3*4*4)
	writeVertexPos := func(i int, x, y float32) {
		off := i * 16
		putF32(res.Buffers[0].Data[off:off+4], x)
		putF32(res.Buffers[0].Data[off+4:off+8], y)
		putF32(res.Buffers[0].Data[off+8:off+12], 0)
		putF32(res.Buffers[0].Data[off+12:off+16], 1)
	}
	writeVertexPos(0, 0, 0)
	writeVertexPos(1, 4, 0)
	writeVertexPos(2, 0, 4)

	res.configureBuffer(1, 16)
	putF32(res.Buffers[1].Data[0:4], 1)
	putF32(res.Buffers[1].Data[4:8], 0)
	putF32(res.Buffers[1].Data[8:12], 0)
	putF32(res.Buffers[1].Data[12:16], 1)

	rast := NewRasterizer(res, mem)
	var modes [regsPerClass]Interpolation

	err := rast.DrawGraphicsPipeline(0, 0, 1, 3, Rect{0, 0, 4, 4},
		[]VertexInputAssignment{{BufferID: 0, Offset: 0, Stride: 16, Register: 2, Cardinality: 4}},
		[]FragmentOutputAssignment{{Register: 0, TextureID: 0}},
		[]ConstantBinding{{BufferID: 1, Offset: 0, Register: 0, Cardinality: 4}},
		modes)
	if err != nil {
		t.Fatalf("DrawGraphicsPipeline: %v", err)
	}

	tex := &res.Textures[0]
	idx := tex.ImageLayout.Index(1, 1, tex.Width) * tex.PixelLayout.PixelBytes()
	r, g, b, a := tex.Data[idx], tex.Data[idx+1], tex.Data[idx+2], tex.Data[idx+3]
	if r == 0 && g == 0 && b == 0 && a == 0 {
		t.Fatal("expected (1,1), inside the triangle, to have been shaded")
	}
}

func putF32(b []byte, v float32) {
	bits := float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}
