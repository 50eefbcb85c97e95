package cmd

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"
)

// writePNG writes a 16x16 image with a horizontal gradient offset by shade.
func writePNG(t *testing.T, path string, shade uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := range 16 {
		for x := range 16 {
			img.Set(x, y, color.RGBA{R: shade + uint8(x), G: shade, B: uint8(y * 8), A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}
