package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPUConfigValidate(t *testing.T) {
	assert.NoError(t, GPUConfig{DeviceID: -1}.Validate(), "disabled config is not checked")

	cfg := DefaultGPUConfig()
	cfg.Enabled = true
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.DeviceID = -1
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.ArenaExtendStrategy = "always"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.CUDNNConvAlgoSearch = "FAST"
	assert.Error(t, bad.Validate())
}

func TestProviderSettings(t *testing.T) {
	cfg := DefaultGPUConfig()
	cfg.DeviceID = 2
	s := cfg.providerSettings()
	assert.Equal(t, "2", s["device_id"])
	assert.Equal(t, "kNextPowerOfTwo", s["arena_extend_strategy"])
	assert.NotContains(t, s, "gpu_mem_limit")

	cfg.MemLimit = 1 << 30
	assert.Equal(t, "1073741824", cfg.providerSettings()["gpu_mem_limit"])
}

func TestLibraryName(t *testing.T) {
	name, err := libraryName("linux")
	require.NoError(t, err)
	assert.Equal(t, "libonnxruntime.so", name)

	name, err = libraryName("windows")
	require.NoError(t, err)
	assert.Equal(t, "onnxruntime.dll", name)

	_, err = libraryName("plan9")
	assert.Error(t, err)
}

func TestCandidatePathsOrder(t *testing.T) {
	t.Setenv(LibraryEnv, "/custom/libonnxruntime.so")

	paths := candidatePaths(true, "/proj")
	require.NotEmpty(t, paths)
	assert.Equal(t, "/custom/libonnxruntime.so", paths[0])
	assert.Equal(t, "/opt/onnxruntime/gpu/lib/libonnxruntime.so", paths[1])

	cpu := candidatePaths(false, "")
	assert.NotContains(t, cpu, "/opt/onnxruntime/gpu/lib/libonnxruntime.so")
}

func TestResolveLibraryPathUsesEnv(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	require.NoError(t, os.WriteFile(lib, []byte("stub"), 0o600))
	t.Setenv(LibraryEnv, lib)

	got, err := ResolveLibraryPath(false)
	require.NoError(t, err)
	assert.Equal(t, lib, got)
}

func TestFindProjectRoot(t *testing.T) {
	root, err := findProjectRoot()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "go.mod"))
	assert.NoError(t, err)
}

func TestNewImageTensor(t *testing.T) {
	tensor, err := NewImageTensor(make([]float32, 3*4*5), 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 5}, tensor.Shape)
	assert.NoError(t, tensor.Verify())

	_, err = NewImageTensor(nil, 3, 4, 5)
	assert.Error(t, err)
	_, err = NewImageTensor(make([]float32, 10), 3, 4, 5)
	assert.Error(t, err)
}

func TestTensorVerify(t *testing.T) {
	assert.Error(t, Tensor{Data: make([]float32, 4), Shape: []int64{2, 2}}.Verify())
	assert.Error(t, Tensor{Data: make([]float32, 4), Shape: []int64{1, 0, 2, 2}}.Verify())
	assert.Error(t, Tensor{Data: make([]float32, 3), Shape: []int64{1, 1, 2, 2}}.Verify())
	assert.NoError(t, ValidateNCHW([]int64{1, 3, 640, 640}))
}
