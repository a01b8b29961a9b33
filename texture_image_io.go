// texture_image_io.go - PNG/BMP texture import for test fixtures and the debugger
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
LoadTextureImage decodes an image file into the D8x4/ImageContiguous byte
layout gpu_resources.go's Texture uses internally, for seeding a machine's
GPU texture table (Machine.SeedTexture, the -seed option and test fixtures)
without hand-encoding bytes; SaveTextureSnapshot writes a configured
texture back out as a PNG for the -dumptexture option.
golang.org/x/image's bmp decoder covers a format
image/png's stdlib decoder does not, the way the Engine reaches past
image/png for its own asset pipeline.
*/

package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"

	"golang.org/x/image/bmp"
)

// LoadTextureImage decodes path (PNG or BMP) into raw D8x4/ImageContiguous
// RGBA8 bytes plus its dimensions.
func LoadTextureImage(path string) (width, height int, pixels []byte, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("load texture image %q: %w", path, err)
	}

	var img image.Image
	if img, err = png.Decode(bytes.NewReader(data)); err != nil {
		if img, err = bmp.Decode(bytes.NewReader(data)); err != nil {
			return 0, 0, nil, fmt.Errorf("decode texture image %q: not a recognised PNG or BMP", path)
		}
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			o := (y*w + x) * 4
			out[o] = byte(r >> 8)
			out[o+1] = byte(g >> 8)
			out[o+2] = byte(b >> 8)
			out[o+3] = byte(a >> 8)
		}
	}
	return w, h, out, nil
}

// SaveTextureSnapshot writes a D8x4/ImageContiguous RGBA8 buffer to path as
// a PNG, used by the -dumptexture command-line option to save a configured
// texture to disk.
func SaveTextureSnapshot(path string, width, height int, pixels []byte) error {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, pixels)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save texture snapshot %q: %w", path, err)
	}
	defer f.Close()
	return png.Encode(f, img)
}
