//go:build !onnx

package extractor

import (
	"context"
	"fmt"

	"github.com/kozaktomas/artmap/internal/config"
)

// ONNXExtractor is unavailable without the onnx build tag.
type ONNXExtractor struct{}

func NewONNXExtractor(opts ONNXOptions) (*ONNXExtractor, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: rebuild with -tags onnx", ErrUnsupported)
}

func (e *ONNXExtractor) Backbone() config.Backbone {
	return config.Backbone{}
}

func (e *ONNXExtractor) Device() string {
	return ""
}

func (e *ONNXExtractor) Extract(ctx context.Context, imagePath string) ([]float32, error) {
	return nil, ErrUnsupported
}

func (e *ONNXExtractor) Close() error {
	return nil
}
