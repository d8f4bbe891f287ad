package onnx

import (
	"fmt"
	"log/slog"
	"strconv"

	ort "github.com/yalue/onnxruntime_go"
)

// GPUConfig selects CUDA execution for a session.
type GPUConfig struct {
	Enabled             bool
	DeviceID            int
	MemLimit            uint64 // bytes, 0 = unlimited
	ArenaExtendStrategy string // "kNextPowerOfTwo" or "kSameAsRequested"
	CUDNNConvAlgoSearch string // "EXHAUSTIVE", "HEURISTIC" or "DEFAULT"
}

// DefaultGPUConfig returns a CPU-only configuration with CUDA defaults filled in.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{
		ArenaExtendStrategy: "kNextPowerOfTwo",
		CUDNNConvAlgoSearch: "DEFAULT",
	}
}

var (
	validArenaStrategies = []string{"kNextPowerOfTwo", "kSameAsRequested"}
	validAlgoSearch      = []string{"EXHAUSTIVE", "HEURISTIC", "DEFAULT"}
)

// Validate checks the CUDA settings. A disabled config is always valid.
func (c GPUConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.DeviceID < 0 {
		return fmt.Errorf("gpu device must be non-negative, got %d", c.DeviceID)
	}
	if c.ArenaExtendStrategy != "" && !contains(validArenaStrategies, c.ArenaExtendStrategy) {
		return fmt.Errorf("invalid arena extend strategy %q (valid: %v)", c.ArenaExtendStrategy, validArenaStrategies)
	}
	if c.CUDNNConvAlgoSearch != "" && !contains(validAlgoSearch, c.CUDNNConvAlgoSearch) {
		return fmt.Errorf("invalid cuDNN conv algo search %q (valid: %v)", c.CUDNNConvAlgoSearch, validAlgoSearch)
	}
	return nil
}

// providerSettings renders the CUDA provider key/value options.
func (c GPUConfig) providerSettings() map[string]string {
	settings := map[string]string{
		"device_id":                 strconv.Itoa(c.DeviceID),
		"do_copy_in_default_stream": "1",
	}
	if c.MemLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(c.MemLimit, 10)
	}
	if c.ArenaExtendStrategy != "" {
		settings["arena_extend_strategy"] = c.ArenaExtendStrategy
	}
	if c.CUDNNConvAlgoSearch != "" {
		settings["cudnn_conv_algo_search"] = c.CUDNNConvAlgoSearch
	}
	return settings
}

// configureCUDA appends the CUDA execution provider when enabled.
func configureCUDA(opts *ort.SessionOptions, c GPUConfig) error {
	if !c.Enabled {
		return nil
	}

	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() {
		if err := cudaOpts.Destroy(); err != nil {
			slog.Warn("Failed to destroy CUDA provider options", "error", err)
		}
	}()

	if err := cudaOpts.Update(c.providerSettings()); err != nil {
		return fmt.Errorf("update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		return fmt.Errorf("append CUDA execution provider: %w", err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
