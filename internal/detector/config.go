package detector

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/boxguard/internal/onnx"
)

// Config holds configuration for the object detector.
type Config struct {
	ModelPath     string         // Path to a YOLOv8/YOLO11 ONNX export
	LabelsPath    string         // Optional ultralytics data.yaml with class names
	Labels        []string       // Inline class names, overrides LabelsPath
	InputSize     int            // Square model input edge (default: 640)
	ConfThreshold float64        // Minimum best-class score (default: 0.25)
	NMSThreshold  float64        // IoU threshold for class-wise NMS (default: 0.45)
	NumThreads    int            // Intra-op threads, 0 = runtime default
	GPU           onnx.GPUConfig // CUDA settings
}

// DefaultConfig returns a default detector configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:     "models/detector.onnx",
		InputSize:     640,
		ConfThreshold: 0.25,
		NMSThreshold:  0.45,
		GPU:           onnx.DefaultGPUConfig(),
	}
}

// Validate checks thresholds and sizes without touching the filesystem.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if c.InputSize < 32 || c.InputSize%32 != 0 {
		return fmt.Errorf("input size must be a positive multiple of 32, got %d", c.InputSize)
	}
	if c.ConfThreshold < 0 || c.ConfThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %v", c.ConfThreshold)
	}
	if c.NMSThreshold < 0 || c.NMSThreshold > 1 {
		return fmt.Errorf("nms threshold must be in [0,1], got %v", c.NMSThreshold)
	}
	if c.NumThreads < 0 {
		return fmt.Errorf("num threads must be non-negative, got %d", c.NumThreads)
	}
	return c.GPU.Validate()
}

func validateModelFile(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}
