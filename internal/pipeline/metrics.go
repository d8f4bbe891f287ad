package pipeline

import (
	"github.com/MeKo-Tech/boxguard/internal/actuator"
	"github.com/MeKo-Tech/boxguard/internal/mjpeg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boxguard_frames_processed_total",
			Help: "Total number of frames run through detection",
		},
	)

	frameDecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boxguard_frame_decode_errors_total",
			Help: "Total number of extracted JPEG slices that failed to decode",
		},
	)

	streamDiscardedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boxguard_stream_discarded_bytes_total",
			Help: "Bytes dropped while resynchronising on JPEG markers",
		},
	)

	streamOverflows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boxguard_stream_overflows_total",
			Help: "Frames abandoned because the stream buffer limit was reached",
		},
	)

	streamBufferedBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "boxguard_stream_buffered_bytes",
			Help: "Bytes currently held by the frame demuxer",
		},
	)

	detectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boxguard_detection_errors_total",
			Help: "Total number of failed detection calls",
		},
	)

	inferenceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boxguard_inference_duration_seconds",
			Help:    "Detection call duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	detectionsInZone = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boxguard_detections_in_zone",
			Help:    "Number of detections whose centre lies in the inspection zone",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 25},
		},
	)

	actuatorCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxguard_actuator_commands_total",
			Help: "Total number of actuator commands by outcome",
		},
		[]string{"command", "status"}, // status: ok, error
	)

	cooldownViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boxguard_actuator_cooldown_violations_total",
			Help: "Commands emitted sooner than the configured cooldown after the previous one",
		},
	)

	actuatorState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "boxguard_actuator_state",
			Help: "Current actuator state (0 = clear, 1 = defect_holding)",
		},
	)
)

// observeDemuxer exports the growth of the demuxer counters since prev.
func observeDemuxer(prev, cur mjpeg.Stats, buffered int) {
	if cur.DecodeErrors > prev.DecodeErrors {
		frameDecodeErrors.Add(float64(cur.DecodeErrors - prev.DecodeErrors))
	}
	if cur.DiscardedBytes > prev.DiscardedBytes {
		streamDiscardedBytes.Add(float64(cur.DiscardedBytes - prev.DiscardedBytes))
	}
	if cur.Overflows > prev.Overflows {
		streamOverflows.Add(float64(cur.Overflows - prev.Overflows))
	}
	streamBufferedBytes.Set(float64(buffered))
}

func observeState(s actuator.State) {
	if s == actuator.StateDefectHolding {
		actuatorState.Set(1)
		return
	}
	actuatorState.Set(0)
}
