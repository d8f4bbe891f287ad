// Package detector wraps a YOLO-style ONNX object detector behind a
// frame-in, labelled-boxes-out call.
package detector

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/boxguard/internal/mempool"
	"github.com/MeKo-Tech/boxguard/internal/onnx"
	"github.com/MeKo-Tech/boxguard/internal/utils"
	ort "github.com/yalue/onnxruntime_go"
)

// Detection is one labelled box in frame pixel coordinates.
type Detection struct {
	Box        utils.Box `json:"box"`
	Label      string    `json:"label"`
	ClassID    int       `json:"class_id"`
	Confidence float64   `json:"confidence"`
}

// Func adapts a plain function to the Detect method.
type Func func(image.Image) ([]Detection, error)

// Detect calls f.
func (f Func) Detect(img image.Image) ([]Detection, error) { return f(img) }

// Detector runs object detection with ONNX Runtime. Detect calls are serialised.
type Detector struct {
	config     Config
	labels     []string
	session    *ort.DynamicAdvancedSession
	inputInfo  ort.InputOutputInfo
	outputInfo ort.InputOutputInfo
	inputs     *mempool.Float32Pool
	mu         sync.Mutex
}

// NewDetector loads the model and prepares an inference session.
func NewDetector(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := validateModelFile(config.ModelPath); err != nil {
		return nil, err
	}
	labels, err := resolveLabels(config)
	if err != nil {
		return nil, err
	}

	slog.Debug("Initializing detector",
		"model_path", config.ModelPath,
		"classes", len(labels),
		"input_size", config.InputSize,
		"gpu_enabled", config.GPU.Enabled)

	if err := onnx.Init(config.GPU.Enabled); err != nil {
		return nil, err
	}

	inputInfo, outputInfo, err := modelInfo(config.ModelPath, len(labels))
	if err != nil {
		return nil, err
	}

	opts, err := onnx.NewSessionOptions(config.NumThreads, config.GPU)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("Failed to destroy session options", "error", err)
		}
	}()

	session, err := ort.NewDynamicAdvancedSession(config.ModelPath,
		[]string{inputInfo.Name}, []string{outputInfo.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	slog.Info("Detector ready", "model", config.ModelPath, "labels", labels)
	return &Detector{
		config:     config,
		labels:     labels,
		session:    session,
		inputInfo:  inputInfo,
		outputInfo: outputInfo,
		inputs:     mempool.NewFloat32Pool(3 * config.InputSize * config.InputSize),
	}, nil
}

// modelInfo reads and checks the model's single input and output.
func modelInfo(modelPath string, numClasses int) (ort.InputOutputInfo, ort.InputOutputInfo, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return ort.InputOutputInfo{}, ort.InputOutputInfo{}, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return ort.InputOutputInfo{}, ort.InputOutputInfo{},
			fmt.Errorf("expected 1 input and 1 output, got %d and %d", len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]
	if len(in.Dimensions) != 4 {
		return ort.InputOutputInfo{}, ort.InputOutputInfo{}, fmt.Errorf("expected 4D input tensor, got %dD", len(in.Dimensions))
	}
	if len(out.Dimensions) == 3 {
		if attrs := out.Dimensions[1]; attrs > 0 && attrs < out.Dimensions[2] && int(attrs) != 4+numClasses {
			return ort.InputOutputInfo{}, ort.InputOutputInfo{},
				fmt.Errorf("model predicts %d classes but %d labels are configured", attrs-4, numClasses)
		}
	}
	return in, out, nil
}

// Labels returns the detector's class names, normalised.
func (d *Detector) Labels() []string {
	out := make([]string, len(d.labels))
	copy(out, d.labels)
	return out
}

// Detect runs the model on img and returns NMS-filtered detections in img's
// pixel space.
func (d *Detector) Detect(img image.Image) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil, errors.New("detector is closed")
	}

	canvas, lb, err := utils.LetterboxImage(img, d.config.InputSize)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	buf := d.inputs.Get()
	defer d.inputs.Put(buf)
	data, w, h, err := utils.NormalizeImageInto(canvas, buf)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	input, err := tensor.Value()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := input.Destroy(); err != nil {
			slog.Warn("Failed to destroy input tensor", "error", err)
		}
	}()

	outputs := []ort.Value{nil}
	if err := d.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		if err := outputs[0].Destroy(); err != nil {
			slog.Warn("Failed to destroy output tensor", "error", err)
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}

	dets, err := decodeOutput(out.GetData(), out.GetShape(), d.labels, d.config.ConfThreshold, lb)
	if err != nil {
		return nil, err
	}
	return NonMaxSuppression(dets, d.config.NMSThreshold), nil
}

// Close releases the session. The ONNX environment stays up for the process.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.session = nil
	if err != nil {
		return fmt.Errorf("destroy detector session: %w", err)
	}
	return nil
}
