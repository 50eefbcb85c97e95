package extractor

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/artmap/internal/config"
)

// ONNXOptions configures the in-process backbone.
type ONNXOptions struct {
	Backbone    config.Backbone
	ModelPath   string
	LibraryPath string
	Device      string // auto, cuda or cpu
}

func (o ONNXOptions) validate() error {
	if o.ModelPath == "" {
		return errors.New("ONNX_MODEL_PATH is required for the onnx extractor")
	}
	switch o.Device {
	case "", "auto", "cuda", "cpu":
	default:
		return fmt.Errorf("unknown device %q (expected auto, cuda or cpu)", o.Device)
	}
	b := o.Backbone
	if b.CropSize <= 0 || b.FeatureMap[0] <= 0 || b.InputName == "" || b.OutputName == "" {
		return fmt.Errorf("backbone %q has no ONNX tensor layout", b.Name)
	}
	return nil
}
