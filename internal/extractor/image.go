package extractor

import (
	"bytes"
	"fmt"
	"image"
	stddraw "image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// decodeFile reads and decodes an image file.
func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// resizeImage scales an image to the specified dimensions.
func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// shortSideSize returns the dimensions of img scaled so that its shorter
// side equals size.
func shortSideSize(b image.Rectangle, size int) (int, int) {
	w, h := b.Dx(), b.Dy()
	if w < h {
		return size, max(size, int(float64(h)*float64(size)/float64(w)))
	}
	return max(size, int(float64(w)*float64(size)/float64(h))), size
}

// resizeCenterCrop scales img so its shorter side equals resize and cuts a
// crop x crop square from the centre.
func resizeCenterCrop(img image.Image, resize, crop int) *image.RGBA {
	rw, rh := shortSideSize(img.Bounds(), resize)
	resized := image.NewRGBA(image.Rect(0, 0, rw, rh))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Over, nil)

	out := image.NewRGBA(image.Rect(0, 0, crop, crop))
	off := image.Point{X: (rw - crop) / 2, Y: (rh - crop) / 2}
	stddraw.Draw(out, out.Bounds(), resized, off, stddraw.Src)
	return out
}

// ShrinkForUpload downscales encoded image data so that its shorter side is
// at most size, keeping aspect ratio. Images already small enough are
// returned unchanged; others are re-encoded as JPEG.
func ShrinkForUpload(data []byte, size int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if size <= 0 || min(bounds.Dx(), bounds.Dy()) <= size {
		return data, nil
	}

	w, h := shortSideSize(bounds, size)
	resized := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
