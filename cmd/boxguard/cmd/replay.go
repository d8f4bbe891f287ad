package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/MeKo-Tech/boxguard/internal/detector"
	"github.com/MeKo-Tech/boxguard/internal/mjpeg"
	"github.com/MeKo-Tech/boxguard/internal/pipeline"
	"github.com/spf13/cobra"
)

// replayCmd represents the replay command.
var replayCmd = &cobra.Command{
	Use:   "replay <recording>",
	Short: "Run the inspection loop over a recorded MJPEG file",
	Long: `Feed a recorded MJPEG stream (raw concatenated JPEGs or a multipart dump)
through the same inspection loop used by "run".

By default commands are logged rather than sent. --detections replaces the
model with a YAML script of per-frame detections, and --frame-interval makes
time advance by a fixed step per frame so hold durations behave as they would
at the camera's frame rate.

Examples:
  boxguard replay belt.mjpeg
  boxguard replay belt.mjpeg --detections script.yaml --frame-interval 100ms
  boxguard replay belt.mjpeg --dry-run=false --store audit.db`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		applyInspectionFlags(cmd, cfg)
		cfg.Actuator.DryRun, _ = cmd.Flags().GetBool("dry-run")
		if cmd.Flags().Changed("port") {
			cfg.Actuator.Port, _ = cmd.Flags().GetString("port")
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		path := args[0]
		s := session{
			openSource: func(context.Context) (io.ReadCloser, error) {
				return mjpeg.OpenFile(path)
			},
			newDetector: modelDetector(cfg),
		}

		if script, _ := cmd.Flags().GetString("detections"); script != "" {
			s.newDetector = func() (pipeline.Detector, io.Closer, error) {
				sc, err := detector.LoadScript(script)
				if err != nil {
					return nil, nil, err
				}
				slog.Info("Using scripted detections", "path", script, "frames", sc.Remaining())
				return sc, nopCloser, nil
			}
		}

		if interval, _ := cmd.Flags().GetDuration("frame-interval"); interval > 0 {
			s.clock = newFrameClock(time.Now(), interval)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		_, err := runSession(ctx, cmd.OutOrStdout(), cfg, s)
		return err
	},
}

// newFrameClock returns a clock that starts at start and advances by step on
// every call after the first.
func newFrameClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(step)
		return t
	}
}

func init() {
	rootCmd.AddCommand(replayCmd)
	addInspectionFlags(replayCmd)
	replayCmd.Flags().String("detections", "", "YAML detection script used instead of the model")
	replayCmd.Flags().Duration("frame-interval", 0, "synthetic time step per frame (0 uses the wall clock)")
	replayCmd.Flags().Bool("dry-run", true, "log actuator commands instead of writing them")
	replayCmd.Flags().String("port", "", "serial port when --dry-run=false")
}
