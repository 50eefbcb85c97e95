//go:build onnx

package extractor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/kozaktomas/artmap/internal/config"
)

// ONNXExtractor runs the backbone in process through onnxruntime. The model
// must take a [1,3,crop,crop] float tensor and return the final feature map
// [1,C,H,W]; pooling happens here.
type ONNXExtractor struct {
	backbone config.Backbone
	device   string

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]

	mu sync.Mutex
}

// NewONNXExtractor initialises the runtime and loads the model. With device
// "auto" the CUDA provider is tried first and the CPU is used if it cannot be
// attached.
func NewONNXExtractor(opts ONNXOptions) (*ONNXExtractor, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	b := opts.Backbone

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(b.CropSize), int64(b.CropSize)), make([]float32, 3*b.CropSize*b.CropSize))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	c, h, w := b.FeatureMap[0], b.FeatureMap[1], b.FeatureMap[2]
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(c), int64(h), int64(w)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	e := &ONNXExtractor{backbone: b, input: input, output: output}

	devices := []string{opts.Device}
	if opts.Device == "auto" || opts.Device == "" {
		devices = []string{"cuda", "cpu"}
	}
	var lastErr error
	for _, dev := range devices {
		session, err := newSession(opts.ModelPath, b, dev, input, output)
		if err != nil {
			lastErr = err
			if opts.Device == "auto" || opts.Device == "" {
				log.Printf("onnx: %s unavailable, falling back: %v", dev, err)
			}
			continue
		}
		e.session = session
		e.device = dev
		break
	}
	if e.session == nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create session: %w", lastErr)
	}
	return e, nil
}

func newSession(modelPath string, b config.Backbone, device string, input, output *ort.Tensor[float32]) (*ort.AdvancedSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	switch device {
	case "cuda":
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, err
		}
		defer cudaOptions.Destroy()
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			return nil, err
		}
	case "cpu":
	default:
		return nil, fmt.Errorf("unknown device %q", device)
	}

	return ort.NewAdvancedSession(
		modelPath,
		[]string{b.InputName},
		[]string{b.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
}

func (e *ONNXExtractor) Backbone() config.Backbone {
	return e.backbone
}

// Device returns the execution provider chosen at startup.
func (e *ONNXExtractor) Device() string {
	return e.device
}

func (e *ONNXExtractor) Extract(ctx context.Context, imagePath string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := decodeFile(imagePath)
	if err != nil {
		return nil, err
	}
	tensor := PreprocessNCHW(img, e.backbone)

	e.mu.Lock()
	defer e.mu.Unlock()

	copy(e.input.GetData(), tensor)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	fm := e.backbone.FeatureMap
	vec := GlobalAveragePool(e.output.GetData(), fm[0], fm[1], fm[2])
	if err := checkDim(vec, e.backbone); err != nil {
		return nil, err
	}
	return vec, nil
}

// Close releases the session and its tensors. The runtime environment is
// torn down as well.
func (e *ONNXExtractor) Close() error {
	if e == nil {
		return nil
	}
	var errs []error
	if e.session != nil {
		errs = append(errs, e.session.Destroy())
	}
	errs = append(errs, e.input.Destroy(), e.output.Destroy(), ort.DestroyEnvironment())
	return errors.Join(errs...)
}
