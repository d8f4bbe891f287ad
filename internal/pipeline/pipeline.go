// Package pipeline runs the single-threaded inspection loop: pull a frame,
// detect, filter by zone, classify, debounce and drive the actuator.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/boxguard/internal/actuator"
	"github.com/MeKo-Tech/boxguard/internal/detector"
	"github.com/MeKo-Tech/boxguard/internal/inspect"
	"github.com/MeKo-Tech/boxguard/internal/mjpeg"
	"github.com/MeKo-Tech/boxguard/internal/store"
	"github.com/google/uuid"
)

// ErrDetection marks a failed detection call. The frame is skipped.
var ErrDetection = errors.New("detection failed")

// Detector is the detection model as seen by the loop.
type Detector interface {
	Detect(img image.Image) ([]detector.Detection, error)
}

// FrameSource yields frames until io.EOF.
type FrameSource interface {
	Next(ctx context.Context) (*mjpeg.Frame, error)
}

// Sender delivers actuator commands.
type Sender interface {
	Send(cmd actuator.Command) error
}

// Recorder persists emitted commands.
type Recorder interface {
	RecordCommand(ctx context.Context, ev store.CommandEvent) error
}

// Publisher receives every processed frame. Implementations must not block.
type Publisher interface {
	Publish(res *Result, img image.Image)
}

// demuxerSource is implemented by mjpeg.Stream.
type demuxerSource interface {
	Demuxer() *mjpeg.Demuxer
}

// Config holds the inspection settings.
type Config struct {
	Zone         inspect.Zone
	Classifier   inspect.Classifier
	HoldDuration time.Duration
	Cooldown     time.Duration
	OKLabels     []string // drawn green in the overlay
}

// Result describes one processed frame.
type Result struct {
	Seq        uint64               `json:"seq"`
	At         time.Time            `json:"at"`
	Width      int                  `json:"width"`
	Height     int                  `json:"height"`
	Zone       inspect.Bounds       `json:"zone"`
	InZone     []detector.Detection `json:"in_zone"`
	Labels     inspect.LabelSet     `json:"-"`
	Verdict    inspect.Verdict      `json:"verdict"`
	Transition actuator.Transition  `json:"transition"`
	SendErr    error                `json:"-"`
}

// Status is the loop's externally visible state.
type Status struct {
	RunID           string            `json:"run_id"`
	Actuator        actuator.Snapshot `json:"actuator"`
	LastSeq         uint64            `json:"last_seq"`
	LastFrameAt     *time.Time        `json:"last_frame_at,omitempty"`
	LastLabels      []string          `json:"last_labels"`
	LastVerdict     inspect.Verdict   `json:"last_verdict"`
	Frames          uint64            `json:"frames"`
	DetectionErrors uint64            `json:"detection_errors"`
	Commands        uint64            `json:"commands"`
	SendErrors      uint64            `json:"send_errors"`
	Stream          mjpeg.Stats       `json:"stream"`
	BufferedBytes   int               `json:"buffered_bytes"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces time.Now for state machine timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRecorder stores every emitted command.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithPublisher hands every processed frame to pub.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// Pipeline owns the actuator state machine. ProcessFrame and Run must be called
// from one goroutine; State may be read from any.
type Pipeline struct {
	cfg       Config
	okLabels  inspect.LabelSet
	det       Detector
	link      Sender
	machine   *actuator.StateMachine
	now       func() time.Time
	recorder  Recorder
	publisher Publisher
	logger    *slog.Logger
	runID     string

	mu     sync.RWMutex
	status Status
}

// New wires a pipeline.
func New(cfg Config, det Detector, link Sender, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		okLabels: inspect.NewLabelSet(cfg.OKLabels...),
		det:      det,
		link:     link,
		machine:  actuator.NewStateMachine(cfg.HoldDuration, cfg.Cooldown),
		now:      time.Now,
		logger:   slog.Default(),
		runID:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.status = Status{RunID: p.runID, Actuator: p.machine.Snapshot(), LastLabels: []string{}}
	observeState(p.machine.State())
	return p
}

// RunID identifies this process run in the audit log.
func (p *Pipeline) RunID() string { return p.runID }

// OKLabels returns the overlay's green labels.
func (p *Pipeline) OKLabels() inspect.LabelSet { return p.okLabels }

// State returns a copy of the current status.
func (p *Pipeline) State() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.status
	s.LastLabels = append([]string(nil), p.status.LastLabels...)
	return s
}

// ProcessFrame runs one frame through detection, zone filter, classifier and
// state machine, sending a command if the state changed. A detection failure
// is returned wrapped in ErrDetection and leaves the state untouched.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame *mjpeg.Frame) (*Result, error) {
	if frame == nil || frame.Image == nil {
		return nil, errors.New("empty frame")
	}
	start := time.Now()
	dets, err := p.det.Detect(frame.Image)
	inferenceDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		detectionErrors.Inc()
		p.mu.Lock()
		p.status.DetectionErrors++
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: frame %d: %w", ErrDetection, frame.Seq, err)
	}
	framesProcessed.Inc()
	// Observed after inference so the hold runs from when the verdict exists.
	now := p.now()

	zone := p.cfg.Zone.Bounds(frame.Width, frame.Height)
	inZone := p.cfg.Zone.Filter(dets, frame.Width, frame.Height)
	detectionsInZone.Observe(float64(len(inZone)))
	labels := inspect.LabelsOf(inZone)
	verdict := p.cfg.Classifier.Classify(labels)
	tr := p.machine.Step(now, verdict.ObjectPresent, verdict.Defective)

	res := &Result{
		Seq:        frame.Seq,
		At:         now,
		Width:      frame.Width,
		Height:     frame.Height,
		Zone:       zone,
		InZone:     inZone,
		Labels:     labels,
		Verdict:    verdict,
		Transition: tr,
	}

	if tr.Emitted {
		res.SendErr = p.deliver(ctx, res)
	} else {
		p.logger.Debug("Frame processed",
			"seq", frame.Seq,
			"state", tr.To,
			"labels", labels.Sorted(),
			"present", verdict.ObjectPresent,
			"defective", verdict.Defective)
	}
	observeState(p.machine.State())
	p.updateStatus(res)

	if p.publisher != nil {
		p.publisher.Publish(res, frame.Image)
	}
	return res, nil
}

// deliver sends the transition's command. A failed send is reported but the
// new state stands.
func (p *Pipeline) deliver(ctx context.Context, res *Result) error {
	tr := res.Transition
	if tr.WithinCooldown {
		cooldownViolations.Inc()
		p.logger.Debug("Command inside cooldown window",
			"command", tr.Command, "since_last", tr.SinceLastCommand, "cooldown", p.machine.Cooldown())
	}

	err := p.link.Send(tr.Command)
	status := "ok"
	if err != nil {
		status = "error"
		p.logger.Error("Actuator command failed",
			"seq", res.Seq, "command", tr.Command, "state", tr.To, "error", err)
	} else {
		p.logger.Info("Actuator transition",
			"seq", res.Seq,
			"command", tr.Command,
			"from", tr.From,
			"state", tr.To,
			"labels", res.Labels.Sorted())
	}
	actuatorCommands.WithLabelValues(tr.Command.String(), status).Inc()

	if p.recorder != nil {
		ev := store.CommandEvent{
			RunID:     p.runID,
			Seq:       res.Seq,
			At:        tr.At,
			Command:   tr.Command.String(),
			FromState: tr.From.String(),
			ToState:   tr.To.String(),
			Labels:    res.Labels.Sorted(),
			Delivered: err == nil,
		}
		if err != nil {
			ev.Error = err.Error()
		}
		if recErr := p.recorder.RecordCommand(ctx, ev); recErr != nil {
			p.logger.Warn("Failed to record command", "seq", res.Seq, "error", recErr)
		}
	}
	return err
}

func (p *Pipeline) updateStatus(res *Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	at := res.At
	p.status.Actuator = p.machine.Snapshot()
	p.status.LastSeq = res.Seq
	p.status.LastFrameAt = &at
	p.status.LastLabels = res.Labels.Sorted()
	p.status.LastVerdict = res.Verdict
	p.status.Frames++
	if res.Transition.Emitted {
		p.status.Commands++
		if res.SendErr != nil {
			p.status.SendErrors++
		}
	}
}

// Run pulls frames from src until it is exhausted or ctx is cancelled. Only a
// source error other than io.EOF or cancellation is returned.
func (p *Pipeline) Run(ctx context.Context, src FrameSource) error {
	var prev mjpeg.Stats
	for {
		frame, err := src.Next(ctx)
		if ds, ok := src.(demuxerSource); ok {
			d := ds.Demuxer()
			cur := d.Stats()
			observeDemuxer(prev, cur, d.Buffered())
			prev = cur
			p.mu.Lock()
			p.status.Stream = cur
			p.status.BufferedBytes = d.Buffered()
			p.mu.Unlock()
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.logger.Info("Stream ended", "frames", p.State().Frames)
				return nil
			}
			if ctx.Err() != nil {
				p.logger.Info("Pipeline stopped", "reason", ctx.Err())
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		if _, err := p.ProcessFrame(ctx, frame); err != nil {
			p.logger.Warn("Skipping frame", "seq", frame.Seq, "error", err)
		}
		if ctx.Err() != nil {
			p.logger.Info("Pipeline stopped", "reason", ctx.Err())
			return nil
		}
	}
}
