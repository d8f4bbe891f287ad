package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/boxguard/internal/actuator"
	"github.com/MeKo-Tech/boxguard/internal/detector"
	"github.com/MeKo-Tech/boxguard/internal/inspect"
	"github.com/MeKo-Tech/boxguard/internal/mjpeg"
	"github.com/MeKo-Tech/boxguard/internal/onnx"
	"github.com/MeKo-Tech/boxguard/internal/pipeline"
	"github.com/MeKo-Tech/boxguard/internal/server"
	"github.com/MeKo-Tech/boxguard/internal/utils"
)

// DefaultStreamURL is the camera the line was commissioned with.
const DefaultStreamURL = "http://192.168.43.76:81/stream"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	gpu := onnx.DefaultGPUConfig()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Stream: StreamConfig{
			URL:            DefaultStreamURL,
			ChunkSize:      mjpeg.DefaultChunkSize,
			ConnectTimeout: 10 * time.Second,
			MaxBufferBytes: mjpeg.DefaultMaxBuffer,
		},
		Detector: DetectorConfig{
			ModelPath:     det.ModelPath,
			InputSize:     det.InputSize,
			ConfThreshold: det.ConfThreshold,
			NMSThreshold:  det.NMSThreshold,
			NumThreads:    det.NumThreads,
		},
		GPU: GPUConfig{
			Enabled:             false,
			Device:              0,
			MemoryLimit:         "auto",
			ArenaExtendStrategy: gpu.ArenaExtendStrategy,
			CUDNNConvAlgoSearch: gpu.CUDNNConvAlgoSearch,
		},
		Inspection: InspectionConfig{
			ZoneWidth:    270,
			ZoneHeight:   140,
			PresentLabel: inspect.DefaultPresentLabel,
			DefectLabels: append([]string(nil), inspect.DefaultDefectLabels...),
			OKLabels:     []string{"box", "sealed"},
		},
		Actuator: ActuatorConfig{
			Port:         "COM10",
			BaudRate:     actuator.DefaultBaudRate,
			DataBits:     8,
			StopBits:     1,
			Parity:       "N",
			SettleDelay:  actuator.DefaultSettleDelay,
			HoldDuration: actuator.DefaultHoldDuration,
			Cooldown:     actuator.DefaultCooldown,
			DryRun:       false,
		},
		Server: ServerConfig{
			Enabled:         false,
			Host:            "localhost",
			Port:            8090,
			CORSOrigin:      "*",
			ShutdownTimeout: 10 * time.Second,
			PreviewQuality:  utils.DefaultJPEGQuality,
		},
		Store: StoreConfig{Path: ""},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Stream.URL != "" {
		u, err := url.Parse(c.Stream.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid stream.url: %q (must be an http or https URL)", c.Stream.URL)
		}
	}
	if c.Stream.ChunkSize <= 0 {
		return fmt.Errorf("invalid stream.chunk_size: %d (must be positive)", c.Stream.ChunkSize)
	}
	if c.Stream.ConnectTimeout <= 0 {
		return fmt.Errorf("invalid stream.connect_timeout: %s (must be positive)", c.Stream.ConnectTimeout)
	}
	if c.Stream.MaxBufferBytes < c.Stream.ChunkSize {
		return fmt.Errorf("invalid stream.max_buffer_bytes: %d (must be at least chunk_size)", c.Stream.MaxBufferBytes)
	}

	if err := validateThreshold(c.Detector.ConfThreshold, "detector.conf_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Detector.NMSThreshold, "detector.nms_threshold"); err != nil {
		return err
	}
	if c.Detector.InputSize < 32 || c.Detector.InputSize%32 != 0 {
		return fmt.Errorf("invalid detector.input_size: %d (must be a positive multiple of 32)", c.Detector.InputSize)
	}
	if c.Detector.NumThreads < 0 {
		return fmt.Errorf("invalid detector.num_threads: %d (must not be negative)", c.Detector.NumThreads)
	}

	if err := validateMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}
	if err := c.toGPUConfig().Validate(); err != nil {
		return err
	}

	if c.Inspection.ZoneWidth <= 0 || c.Inspection.ZoneHeight <= 0 {
		return fmt.Errorf("invalid inspection zone: %dx%d (must be positive)", c.Inspection.ZoneWidth, c.Inspection.ZoneHeight)
	}
	if strings.TrimSpace(c.Inspection.PresentLabel) == "" {
		return fmt.Errorf("inspection.present_label cannot be empty")
	}

	if _, err := c.ToPortOptions().Normalize(); err != nil {
		return fmt.Errorf("invalid actuator settings: %w", err)
	}
	if c.Actuator.HoldDuration <= 0 {
		return fmt.Errorf("invalid actuator.hold_duration: %s (must be positive)", c.Actuator.HoldDuration)
	}
	if c.Actuator.Cooldown < 0 || c.Actuator.SettleDelay < 0 {
		return fmt.Errorf("actuator durations cannot be negative")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid server.shutdown_timeout: %s (must be positive)", c.Server.ShutdownTimeout)
	}
	if c.Server.PreviewQuality < 0 || c.Server.PreviewQuality > 100 {
		return fmt.Errorf("invalid server.preview_quality: %d (must be between 0 and 100)", c.Server.PreviewQuality)
	}

	return nil
}

// ToDetectorConfig converts the config to the detector configuration.
func (c *Config) ToDetectorConfig() detector.Config {
	return detector.Config{
		ModelPath:     c.Detector.ModelPath,
		LabelsPath:    c.Detector.LabelsPath,
		Labels:        c.Detector.Labels,
		InputSize:     c.Detector.InputSize,
		ConfThreshold: c.Detector.ConfThreshold,
		NMSThreshold:  c.Detector.NMSThreshold,
		NumThreads:    c.Detector.NumThreads,
		GPU:           c.toGPUConfig(),
	}
}

func (c *Config) toGPUConfig() onnx.GPUConfig {
	limit, _ := parseMemoryLimit(c.GPU.MemoryLimit)
	return onnx.GPUConfig{
		Enabled:             c.GPU.Enabled,
		DeviceID:            c.GPU.Device,
		MemLimit:            limit,
		ArenaExtendStrategy: c.GPU.ArenaExtendStrategy,
		CUDNNConvAlgoSearch: c.GPU.CUDNNConvAlgoSearch,
	}
}

// ToPipelineConfig converts the config to the inspection loop configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		Zone:         inspect.Zone{Width: c.Inspection.ZoneWidth, Height: c.Inspection.ZoneHeight},
		Classifier:   inspect.NewClassifier(c.Inspection.PresentLabel, c.Inspection.DefectLabels),
		HoldDuration: c.Actuator.HoldDuration,
		Cooldown:     c.Actuator.Cooldown,
		OKLabels:     c.Inspection.OKLabels,
	}
}

// ToPortOptions converts the actuator settings to serial port options.
func (c *Config) ToPortOptions() actuator.PortOptions {
	return actuator.PortOptions{
		BaudRate: c.Actuator.BaudRate,
		DataBits: c.Actuator.DataBits,
		StopBits: c.Actuator.StopBits,
		Parity:   c.Actuator.Parity,
	}
}

// ToServerConfig converts the config to the monitoring server configuration.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		CORSOrigin:      c.Server.CORSOrigin,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		PreviewQuality:  c.Server.PreviewQuality,
	}
}

// ToStreamOptions converts the stream settings to frame source options.
func (c *Config) ToStreamOptions() []mjpeg.StreamOption {
	return []mjpeg.StreamOption{
		mjpeg.WithChunkSize(c.Stream.ChunkSize),
		mjpeg.WithDemuxerOptions(mjpeg.WithMaxBuffer(c.Stream.MaxBufferBytes)),
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// validateMemoryLimit validates GPU memory limit format (e.g., "1GB", "512MB").
func validateMemoryLimit(limit string) error {
	_, err := parseMemoryLimit(limit)
	return err
}

// parseMemoryLimit converts a limit such as "512MB" to bytes. "" and "auto" mean 0.
func parseMemoryLimit(limit string) (uint64, error) {
	if limit == "" || limit == "auto" {
		return 0, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(limit))
	// Longest suffix first so "MB" is not read as "B".
	units := []struct {
		suffix string
		scale  float64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(upper, u.suffix)), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.scale), nil
	}
	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB")
}
