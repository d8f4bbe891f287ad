package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/boxguard/internal/store"
	"github.com/MeKo-Tech/boxguard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "boxguard", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommandHelp(t *testing.T) {
	output, err := execute(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, output, "Available Commands:")
	assert.Contains(t, output, "Usage:")
	assert.Contains(t, output, "replay")
}

func TestRootCommandSubcommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, sub := range rootCmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, expected := range []string{"run", "replay", "config", "commands", "check"} {
		assert.Contains(t, names, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandVersion(t *testing.T) {
	t.Cleanup(func() { _ = rootCmd.PersistentFlags().Set("version", "false") })

	output, err := execute(t, "--version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(output, "boxguard version "), output)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boxguard.yaml")

	output, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote default configuration")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "hold_duration: 5s")
	assert.Contains(t, string(raw), "zone_width: 270")

	_, err = execute(t, "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "config", "init", path, "--force")
	require.NoError(t, err)
}

func TestConfigShow(t *testing.T) {
	output, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "present_label: box")
	assert.Contains(t, output, "hold_duration: 5s")
}

func writeRecording(t *testing.T, dir string, frames int) string {
	t.Helper()
	parts := make([][]byte, frames)
	for i := range parts {
		parts[i] = testutil.JPEGFrame(t, 640, 480, uint8(40+i*10))
	}
	path := filepath.Join(dir, "belt.mjpeg")
	require.NoError(t, os.WriteFile(path, testutil.MJPEGMultipart(parts...), 0o600))
	return path
}

func TestReplayWithScriptAndStore(t *testing.T) {
	dir := t.TempDir()
	recording := writeRecording(t, dir, 7)

	// A damaged box in the zone for one frame, then an empty belt. With one
	// second per frame the 5s hold expires on the sixth frame.
	script := filepath.Join(dir, "script.yaml")
	require.NoError(t, os.WriteFile(script, []byte(`
- detections:
    - {label: box, box: [300, 220, 340, 260]}
    - {label: hole, box: [310, 230, 320, 240]}
`), 0o600))
	db := filepath.Join(dir, "audit.db")

	output, err := execute(t, "replay", recording,
		"--detections", script,
		"--frame-interval", "1s",
		"--store", db)
	require.NoError(t, err)
	assert.Contains(t, output, "frames=7")
	assert.Contains(t, output, "commands=2")
	assert.Contains(t, output, "send_errors=0")
	assert.Contains(t, output, "state=clear")

	output, err = execute(t, "commands", "--store", db, "--json")
	require.NoError(t, err)

	var events []store.CommandEvent
	require.NoError(t, json.Unmarshal([]byte(output), &events))
	require.Len(t, events, 2)
	assert.Equal(t, "clear", events[0].Command)
	assert.Equal(t, "defect", events[1].Command)
	assert.Equal(t, []string{"box", "hole"}, events[1].Labels)
	assert.True(t, events[1].Delivered)
	assert.Equal(t, 5*time.Second, events[0].At.Sub(events[1].At))
	assert.Equal(t, events[0].RunID, events[1].RunID)

	output, err = execute(t, "commands", "--store", db, "--json=false", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, output, "COMMAND")
	assert.Contains(t, output, "defect_holding -> clear")
	assert.NotContains(t, output, "clear -> defect_holding")
}

func TestReplayMissingRecording(t *testing.T) {
	_, err := execute(t, "replay", filepath.Join(t.TempDir(), "missing.mjpeg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open recording")
}

func TestCommandsWithoutStore(t *testing.T) {
	_, err := execute(t, "commands", "--store", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audit store")
}

func TestCheckCommand(t *testing.T) {
	output, err := execute(t, "check")

	// ONNX Runtime may be missing on the test host; either path is acceptable.
	if err != nil {
		t.Logf("check returned error (possibly due to missing ONNX Runtime): %v", err)
	}
	assert.Contains(t, output, "onnx runtime")
	assert.Contains(t, output, "configured port: COM10")
}

func TestFrameClock(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := newFrameClock(start, 100*time.Millisecond)

	assert.Equal(t, start, clock())
	assert.Equal(t, start.Add(100*time.Millisecond), clock())
	assert.Equal(t, start.Add(200*time.Millisecond), clock())
}
