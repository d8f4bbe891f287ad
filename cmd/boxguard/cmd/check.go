package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/boxguard/internal/actuator"
	"github.com/MeKo-Tech/boxguard/internal/detector"
	"github.com/MeKo-Tech/boxguard/internal/onnx"
	"github.com/spf13/cobra"
)

// checkCmd represents the check command.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check ONNX Runtime, model and serial port setup",
	Long: `Verify that the pieces "run" needs are in place:

- the ONNX Runtime shared library can be found and initialised
- the detector model loads and exposes class labels (with --model-load)
- serial ports are visible to the process`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		applyInspectionFlags(cmd, cfg)
		out := cmd.OutOrStdout()
		failed := false

		_, _ = fmt.Fprintln(out, cmd.Short)
		_, _ = fmt.Fprintln(out)

		lib, err := onnx.ResolveLibraryPath(cfg.GPU.Enabled)
		if err != nil {
			failed = true
			_, _ = fmt.Fprintf(out, "FAIL onnx runtime: %v\n", err)
		} else {
			_, _ = fmt.Fprintf(out, "ok   onnx runtime: %s\n", lib)
			if err := onnx.Init(cfg.GPU.Enabled); err != nil {
				failed = true
				_, _ = fmt.Fprintf(out, "FAIL onnx init: %v\n", err)
			}
		}

		if load, _ := cmd.Flags().GetBool("model-load"); load {
			det, err := detector.NewDetector(cfg.ToDetectorConfig())
			if err != nil {
				failed = true
				_, _ = fmt.Fprintf(out, "FAIL model %s: %v\n", cfg.Detector.ModelPath, err)
			} else {
				_, _ = fmt.Fprintf(out, "ok   model %s: %s\n", cfg.Detector.ModelPath, strings.Join(det.Labels(), ", "))
				_ = det.Close()
			}
		}

		ports, err := actuator.ListPorts()
		switch {
		case err != nil:
			_, _ = fmt.Fprintf(out, "warn serial ports: %v\n", err)
		case len(ports) == 0:
			_, _ = fmt.Fprintln(out, "warn serial ports: none found")
		default:
			_, _ = fmt.Fprintf(out, "ok   serial ports: %s\n", strings.Join(ports, ", "))
		}
		_, _ = fmt.Fprintf(out, "     configured port: %s\n", cfg.Actuator.Port)

		if failed {
			return errors.New("setup check failed")
		}
		_, _ = fmt.Fprintln(out, "All checks passed.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().String("model", "", "override detector model path")
	checkCmd.Flags().String("labels", "", "override detector labels file")
	checkCmd.Flags().Bool("model-load", false, "also load the detector model")
}
