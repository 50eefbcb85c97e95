// Package extractor turns image files into fixed-length feature vectors
// using a frozen pretrained backbone.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/kozaktomas/artmap/internal/config"
)

var (
	// ErrEmptyEmbedding is returned when a backend produces no values.
	ErrEmptyEmbedding = errors.New("empty embedding returned")
	// ErrDimensionMismatch is returned when a backend produces a vector whose
	// length differs from the backbone dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrNonFinite is returned when a vector contains NaN or Inf.
	ErrNonFinite = errors.New("embedding contains non-finite values")
	// ErrUnsupported is returned for backends not compiled into the binary.
	ErrUnsupported = errors.New("extractor not supported by this build")
)

// Extractor computes the embedding of a single image file.
type Extractor interface {
	Extract(ctx context.Context, imagePath string) ([]float32, error)
	Backbone() config.Backbone
}

// New returns the extractor selected by cfg.Embedding.Extractor.
func New(cfg *config.Config) (Extractor, error) {
	name := cfg.Embedding.Backbone
	if cfg.Embedding.Extractor == "dct" {
		name = "dct"
	}
	backbone, ok := cfg.GetBackbone(name)
	if !ok {
		return nil, fmt.Errorf("unknown backbone %q", name)
	}

	switch cfg.Embedding.Extractor {
	case "http", "":
		return NewClient(cfg.Embedding.URL, backbone, cfg.Embedding.RateLimit), nil
	case "onnx":
		e, err := NewONNXExtractor(ONNXOptions{
			Backbone:    backbone,
			ModelPath:   cfg.Embedding.ModelPath,
			LibraryPath: cfg.Embedding.LibraryPath,
			Device:      cfg.Embedding.Device,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	case "dct":
		return NewDCTExtractor(backbone), nil
	default:
		return nil, fmt.Errorf("unknown extractor %q (expected http, onnx or dct)", cfg.Embedding.Extractor)
	}
}

// checkDim validates a produced vector against the backbone.
func checkDim(vec []float32, b config.Backbone) error {
	if err := checkValues(vec); err != nil {
		return err
	}
	if b.Dim > 0 && len(vec) != b.Dim {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), b.Dim)
	}
	return nil
}

// checkValues rejects empty vectors and vectors with NaN or Inf components.
func checkValues(vec []float32) error {
	if len(vec) == 0 {
		return ErrEmptyEmbedding
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: component %d is %v", ErrNonFinite, i, v)
		}
	}
	return nil
}
