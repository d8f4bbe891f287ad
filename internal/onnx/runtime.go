// Package onnx locates and initialises the ONNX Runtime shared library and builds
// session options and input tensors for it.
package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// LibraryEnv overrides the shared library location.
const LibraryEnv = "ONNXRUNTIME_LIB"

var initMu sync.Mutex

// libraryName returns the shared library filename for goos.
func libraryName(goos string) (string, error) {
	switch goos {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", goos)
	}
}

// candidatePaths lists library locations in lookup order: the environment
// override, system locations, then an onnxruntime/ directory next to the project root.
func candidatePaths(useGPU bool, projectRoot string) []string {
	var paths []string
	if p := os.Getenv(LibraryEnv); p != "" {
		paths = append(paths, p)
	}

	if useGPU {
		paths = append(paths, "/opt/onnxruntime/gpu/lib/libonnxruntime.so")
	}
	paths = append(paths,
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	)

	if projectRoot != "" {
		if name, err := libraryName(runtime.GOOS); err == nil {
			if useGPU {
				paths = append(paths, filepath.Join(projectRoot, "onnxruntime", "gpu", "lib", name))
			}
			paths = append(paths, filepath.Join(projectRoot, "onnxruntime", "lib", name))
		}
	}
	return paths
}

// findProjectRoot walks up from the working directory to the nearest go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

// ResolveLibraryPath returns the first existing ONNX Runtime library.
func ResolveLibraryPath(useGPU bool) (string, error) {
	root, _ := findProjectRoot()
	paths := candidatePaths(useGPU, root)
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("ONNX Runtime library not found (set %s); tried %v", LibraryEnv, paths)
}

// Init points onnxruntime_go at the shared library and initialises the
// environment once per process.
func Init(useGPU bool) error {
	initMu.Lock()
	defer initMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	path, err := ResolveLibraryPath(useGPU)
	if err != nil {
		return err
	}
	ort.SetSharedLibraryPath(path)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize ONNX Runtime: %w", err)
	}
	slog.Debug("ONNX Runtime initialized", "library", path, "gpu", useGPU)
	return nil
}

// NewSessionOptions builds session options for the given thread count and GPU
// settings. The caller destroys the returned options.
func NewSessionOptions(numThreads int, gpu GPUConfig) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	if err := configureCUDA(opts, gpu); err != nil {
		_ = opts.Destroy()
		return nil, err
	}
	if numThreads > 0 {
		if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
			_ = opts.Destroy()
			return nil, fmt.Errorf("set thread count: %w", err)
		}
	}
	return opts, nil
}
