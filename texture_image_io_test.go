package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// bmp2x2 is a hand-built 24-bit BMP (no compression, bottom-up row order):
// file row 0 (bottom, image y=1) = [red, green], file row 1 (top, image
// y=0) = [blue, white].
var bmp2x2 = []byte{
	66, 77, 70, 0, 0, 0, 0, 0, 0, 0, 54, 0, 0, 0, 40, 0, 0, 0, 2, 0, 0, 0, 2, 0,
	0, 0, 1, 0, 24, 0, 0, 0, 0, 0, 16, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 255, 0, 255, 0, 0, 0, 255, 0, 0, 255, 255, 255, 0, 0,
}

func TestLoadTextureImageDecodesBMP(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.bmp")
	if err := os.WriteFile(path, bmp2x2, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w, h, pixels, err := LoadTextureImage(path)
	if err != nil {
		t.Fatalf("LoadTextureImage: %v", err)
	}
	if w != 2 || h != 2 {
		t.Fatalf("dimensions = %dx%d, want 2x2", w, h)
	}

	want := []byte{
		0, 0, 255, 255, // (0,0) blue
		255, 255, 255, 255, // (1,0) white
		255, 0, 0, 255, // (0,1) red
		0, 255, 0, 255, // (1,1) green
	}
	if len(pixels) != len(want) {
		t.Fatalf("pixel byte count = %d, want %d", len(pixels), len(want))
	}
	for i := range want {
		if pixels[i] != want[i] {
			t.Fatalf("pixels[%d] = %d, want %d", i, pixels[i], want[i])
		}
	}
}

func TestLoadTextureImageRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.bin")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, _, _, err := LoadTextureImage(path); err == nil {
		t.Fatal("expected an error decoding a non-image file")
	}
}

func TestSaveTextureSnapshotRoundTripsThroughPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")

	width, height := 2, 1
	pixels := []byte{
		10, 20, 30, 255,
		40, 50, 60, 255,
	}
	if err := SaveTextureSnapshot(path, width, height, pixels); err != nil {
		t.Fatalf("SaveTextureSnapshot: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		t.Fatalf("decoded dimensions = %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), width, height)
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			o := (y*width + x) * 4
			got := [4]byte{byte(r >> 8), byte(g >> 8), byte(b >> 8), byte(a >> 8)}
			want := [4]byte{pixels[o], pixels[o+1], pixels[o+2], pixels[o+3]}
			if got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}
