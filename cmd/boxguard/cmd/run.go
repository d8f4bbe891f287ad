package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/boxguard/internal/config"
	"github.com/MeKo-Tech/boxguard/internal/mjpeg"
	"github.com/spf13/cobra"
)

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Inspect a live camera stream and drive the reject actuator",
	Long: `Connect to an MJPEG camera stream, detect packages and damage in the
inspection zone, and send "defect" / "clear" to the reject controller.

The process runs until the stream ends or it receives SIGINT/SIGTERM.

Examples:
  boxguard run
  boxguard run --url http://192.168.43.76:81/stream --port /dev/ttyUSB0
  boxguard run --dry-run --serve --server-port 8090
  boxguard run --store boxguard.db --hold 3s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		applyInspectionFlags(cmd, cfg)

		if cmd.Flags().Changed("url") {
			cfg.Stream.URL, _ = cmd.Flags().GetString("url")
		}
		if cmd.Flags().Changed("port") {
			cfg.Actuator.Port, _ = cmd.Flags().GetString("port")
		}
		if cmd.Flags().Changed("baud") {
			cfg.Actuator.BaudRate, _ = cmd.Flags().GetInt("baud")
		}
		if cmd.Flags().Changed("dry-run") {
			cfg.Actuator.DryRun, _ = cmd.Flags().GetBool("dry-run")
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if cfg.Stream.URL == "" {
			return errors.New("no stream URL configured (set stream.url or --url)")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		_, err := runSession(ctx, cmd.OutOrStdout(), cfg, session{
			openSource: func(ctx context.Context) (io.ReadCloser, error) {
				return mjpeg.OpenHTTP(ctx, cfg.Stream.URL, cfg.Stream.ConnectTimeout)
			},
			newDetector: modelDetector(cfg),
		})
		return err
	},
}

// addInspectionFlags registers the flags shared by run and replay.
func addInspectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("model", "", "override detector model path")
	cmd.Flags().String("labels", "", "override detector labels file (ultralytics data.yaml)")
	cmd.Flags().Int("zone-width", 0, "inspection zone width in pixels")
	cmd.Flags().Int("zone-height", 0, "inspection zone height in pixels")
	cmd.Flags().Duration("hold", 0, "how long a defect stays latched after the last defective frame")
	cmd.Flags().Duration("cooldown", 0, "advisory minimum gap between commands")
	cmd.Flags().String("store", "", "SQLite audit log path")
	cmd.Flags().Bool("serve", false, "start the monitoring HTTP server")
	cmd.Flags().String("server-host", "", "monitoring server host")
	cmd.Flags().Int("server-port", 0, "monitoring server port")
}

// applyInspectionFlags copies explicitly set shared flags over cfg.
func applyInspectionFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("model") {
		cfg.Detector.ModelPath, _ = cmd.Flags().GetString("model")
	}
	if cmd.Flags().Changed("labels") {
		cfg.Detector.LabelsPath, _ = cmd.Flags().GetString("labels")
	}
	if cmd.Flags().Changed("zone-width") {
		cfg.Inspection.ZoneWidth, _ = cmd.Flags().GetInt("zone-width")
	}
	if cmd.Flags().Changed("zone-height") {
		cfg.Inspection.ZoneHeight, _ = cmd.Flags().GetInt("zone-height")
	}
	if cmd.Flags().Changed("hold") {
		cfg.Actuator.HoldDuration, _ = cmd.Flags().GetDuration("hold")
	}
	if cmd.Flags().Changed("cooldown") {
		cfg.Actuator.Cooldown, _ = cmd.Flags().GetDuration("cooldown")
	}
	if cmd.Flags().Changed("store") {
		cfg.Store.Path, _ = cmd.Flags().GetString("store")
	}
	if cmd.Flags().Changed("serve") {
		cfg.Server.Enabled, _ = cmd.Flags().GetBool("serve")
	}
	if cmd.Flags().Changed("server-host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("server-host")
	}
	if cmd.Flags().Changed("server-port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("server-port")
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	addInspectionFlags(runCmd)
	runCmd.Flags().String("url", "", "camera MJPEG stream URL")
	runCmd.Flags().String("port", "", "serial port of the reject controller")
	runCmd.Flags().Int("baud", 0, "serial baud rate")
	runCmd.Flags().Bool("dry-run", false, "log actuator commands instead of writing them")
}
