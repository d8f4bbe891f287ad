package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/boxguard/internal/actuator"
	"github.com/MeKo-Tech/boxguard/internal/config"
	"github.com/MeKo-Tech/boxguard/internal/detector"
	"github.com/MeKo-Tech/boxguard/internal/inspect"
	"github.com/MeKo-Tech/boxguard/internal/mjpeg"
	"github.com/MeKo-Tech/boxguard/internal/pipeline"
	"github.com/MeKo-Tech/boxguard/internal/server"
	"github.com/MeKo-Tech/boxguard/internal/store"
)

// session describes how one inspection run acquires its frame source and model.
type session struct {
	openSource  func(ctx context.Context) (io.ReadCloser, error)
	newDetector func() (pipeline.Detector, io.Closer, error)
	clock       func() time.Time
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var nopCloser = closerFunc(func() error { return nil })

// modelDetector loads the ONNX detector described by cfg.
func modelDetector(cfg *config.Config) func() (pipeline.Detector, io.Closer, error) {
	return func() (pipeline.Detector, io.Closer, error) {
		det, err := detector.NewDetector(cfg.ToDetectorConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("load detector: %w", err)
		}
		slog.Info("Detector loaded", "model", cfg.Detector.ModelPath, "labels", det.Labels())
		return det, det, nil
	}
}

// openLink returns the serial link, or a logging stand-in in dry-run mode.
func openLink(cfg *config.Config) (*actuator.Link, error) {
	if cfg.Actuator.DryRun {
		slog.Info("Actuator dry run enabled; commands are logged only")
		return actuator.NewLink("dry-run", actuator.NewDryRunPort(slog.Default())), nil
	}
	link, err := actuator.OpenSerial(cfg.Actuator.Port, cfg.ToPortOptions(), cfg.Actuator.SettleDelay)
	if err != nil {
		return nil, fmt.Errorf("open actuator: %w", err)
	}
	return link, nil
}

// runSession wires store, server, stream, detector and link around one
// pipeline and runs it until the stream ends or ctx is cancelled. Resources
// are released in reverse order of acquisition.
func runSession(ctx context.Context, out io.Writer, cfg *config.Config, s session) (pipeline.Status, error) {
	var rec *store.Store
	if cfg.Store.Path != "" {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			slog.Warn("Audit store disabled", "path", cfg.Store.Path, "error", err)
		} else {
			rec = st
			defer func() {
				if err := st.Close(); err != nil {
					slog.Warn("Failed to close audit store", "error", err)
				}
			}()
		}
	}

	var p *pipeline.Pipeline
	var srv *server.Server
	if cfg.Server.Enabled {
		opts := []server.Option{server.WithOKLabels(inspect.NewLabelSet(cfg.Inspection.OKLabels...))}
		if rec != nil {
			opts = append(opts, server.WithCommandLog(rec))
		}
		srv = server.NewServer(cfg.ToServerConfig(),
			server.StatusFunc(func() pipeline.Status { return p.State() }), opts...)
		defer func() { _ = srv.Close() }()
	}

	body, err := s.openSource(ctx)
	if err != nil {
		return pipeline.Status{}, err
	}
	stream := mjpeg.NewStream(body, cfg.ToStreamOptions()...)
	defer func() { _ = stream.Close() }()

	det, detCloser, err := s.newDetector()
	if err != nil {
		return pipeline.Status{}, err
	}
	defer func() {
		if err := detCloser.Close(); err != nil {
			slog.Warn("Failed to release detector", "error", err)
		}
	}()

	link, err := openLink(cfg)
	if err != nil {
		return pipeline.Status{}, err
	}
	defer func() {
		if err := link.Close(); err != nil {
			slog.Warn("Failed to close actuator", "error", err)
		}
	}()

	opts := []pipeline.Option{pipeline.WithLogger(slog.Default())}
	if rec != nil {
		opts = append(opts, pipeline.WithRecorder(rec))
	}
	if srv != nil {
		opts = append(opts, pipeline.WithPublisher(srv))
	}
	if s.clock != nil {
		opts = append(opts, pipeline.WithClock(s.clock))
	}
	p = pipeline.New(cfg.ToPipelineConfig(), det, link, opts...)
	slog.Info("Inspection started",
		"run_id", p.RunID(),
		"actuator", link.Name(),
		"zone_width", cfg.Inspection.ZoneWidth,
		"zone_height", cfg.Inspection.ZoneHeight,
		"hold", cfg.Actuator.HoldDuration)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	srvDone := make(chan struct{})
	if srv != nil {
		go func() {
			defer close(srvDone)
			if err := srv.Run(runCtx); err != nil {
				slog.Error("Monitoring server stopped", "error", err)
			}
		}()
	} else {
		close(srvDone)
	}

	runErr := p.Run(runCtx, stream)
	cancel()
	<-srvDone

	status := p.State()
	printSummary(out, status)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return status, runErr
	}
	return status, nil
}

func printSummary(out io.Writer, st pipeline.Status) {
	_, _ = fmt.Fprintf(out,
		"run=%s frames=%d detection_errors=%d commands=%d send_errors=%d decode_errors=%d state=%s\n",
		st.RunID, st.Frames, st.DetectionErrors, st.Commands, st.SendErrors,
		st.Stream.DecodeErrors, st.Actuator.State)
}
