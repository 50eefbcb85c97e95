package extractor

import (
	"context"
	"image"
	"math"

	"github.com/kozaktomas/artmap/internal/config"
)

// dctSize is the side of the square each channel is reduced to before the
// transform; dctKeep is the side of the low-frequency block that is kept.
const (
	dctSize = 32
	dctKeep = 8
)

// DCTExtractor describes an image by the low-frequency DCT coefficients of
// its three colour channels. It needs no model and is fully deterministic,
// which makes it useful offline and in tests.
type DCTExtractor struct {
	backbone config.Backbone
	cosTable [][]float64
}

func NewDCTExtractor(backbone config.Backbone) *DCTExtractor {
	if backbone.Dim == 0 {
		backbone.Dim = 3 * dctKeep * dctKeep
	}
	return &DCTExtractor{backbone: backbone, cosTable: cosineTable(dctSize)}
}

func (d *DCTExtractor) Backbone() config.Backbone {
	return d.backbone
}

func (d *DCTExtractor) Extract(ctx context.Context, imagePath string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := decodeFile(imagePath)
	if err != nil {
		return nil, err
	}
	vec := d.Describe(img)
	if err := checkDim(vec, d.backbone); err != nil {
		return nil, err
	}
	return vec, nil
}

// Describe computes the descriptor of a decoded image: for R, G and B in
// turn, the top-left dctKeep x dctKeep coefficients of the channel DCT,
// scaled to the unit range of the input.
func (d *DCTExtractor) Describe(img image.Image) []float32 {
	resized := resizeImage(img, dctSize, dctSize)
	out := make([]float32, 0, 3*dctKeep*dctKeep)
	norm := 1.0 / (255.0 * dctSize * dctSize)
	for ch := range 3 {
		coeffs := computeDCT(channel(resized, ch), d.cosTable)
		for u := range dctKeep {
			for v := range dctKeep {
				out = append(out, float32(coeffs[u][v]*norm))
			}
		}
	}
	return out
}

// channel extracts one colour channel (0-255) as a 2D array indexed [x][y].
func channel(img *image.RGBA, ch int) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	values := make([][]float64, width)
	for x := range width {
		values[x] = make([]float64, height)
		for y := range height {
			values[x][y] = float64(img.Pix[img.PixOffset(x+bounds.Min.X, y+bounds.Min.Y)+ch])
		}
	}
	return values
}

func cosineTable(size int) [][]float64 {
	cosTable := make([][]float64, size)
	for i := range cosTable {
		cosTable[i] = make([]float64, size)
		for j := range size {
			cosTable[i][j] = math.Cos(math.Pi * float64(i) * (2*float64(j) + 1) / (2 * float64(size)))
		}
	}
	return cosTable
}

// computeDCT computes the low-frequency part of the 2D DCT-II of a square
// block; only the first dctKeep rows and columns are filled.
func computeDCT(values [][]float64, cosTable [][]float64) [][]float64 {
	size := len(values)
	dct := make([][]float64, dctKeep)
	for u := range dctKeep {
		dct[u] = make([]float64, dctKeep)
		for v := range dctKeep {
			var sum float64
			for x := range size {
				for y := range size {
					sum += values[x][y] * cosTable[u][x] * cosTable[v][y]
				}
			}
			dct[u][v] = sum
		}
	}
	return dct
}
