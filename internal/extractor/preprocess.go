package extractor

import (
	"image"

	"github.com/kozaktomas/artmap/internal/config"
)

// PreprocessNCHW prepares an image for a convolutional backbone: shorter side
// resized to InputSize, centre crop of CropSize, per-channel normalisation
// with the backbone mean and std, laid out as a single NCHW tensor.
func PreprocessNCHW(img image.Image, b config.Backbone) []float32 {
	size := b.CropSize
	crop := resizeCenterCrop(img, b.InputSize, size)

	plane := size * size
	out := make([]float32, 3*plane)
	for y := range size {
		for x := range size {
			off := crop.PixOffset(x, y)
			i := y*size + x
			for ch := range 3 {
				v := float32(crop.Pix[off+ch]) / 255.0
				out[ch*plane+i] = (v - b.Mean[ch]) / b.Std[ch]
			}
		}
	}
	return out
}

// GlobalAveragePool reduces a C x H x W feature map to C values by averaging
// each channel over its spatial positions.
func GlobalAveragePool(features []float32, c, h, w int) []float32 {
	out := make([]float32, c)
	spatial := h * w
	if spatial == 0 {
		return out
	}
	for ch := range c {
		var sum float64
		for _, v := range features[ch*spatial : (ch+1)*spatial] {
			sum += float64(v)
		}
		out[ch] = float32(sum / float64(spatial))
	}
	return out
}
