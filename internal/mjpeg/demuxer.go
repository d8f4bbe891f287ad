// Package mjpeg extracts discrete JPEG frames from an unframed, chunked MJPEG byte stream.
package mjpeg

import (
	"bytes"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/boxguard/internal/utils"
)

// DefaultMaxBuffer caps the bytes held for a single open frame.
const DefaultMaxBuffer = 4 << 20

var (
	startMarker = []byte{0xFF, 0xD8}
	endMarker   = []byte{0xFF, 0xD9}
)

// Frame is one decoded image pulled from the stream.
type Frame struct {
	Seq      uint64
	Image    image.Image
	Width    int
	Height   int
	Size     int // encoded JPEG size in bytes
	Received time.Time
}

// Stats counts what the demuxer has seen so far.
type Stats struct {
	Frames         uint64
	DecodeErrors   uint64
	DiscardedBytes uint64
	Overflows      uint64
}

// Option configures a Demuxer.
type Option func(*Demuxer)

// WithMaxBuffer sets the overflow limit. Non-positive values keep the default.
func WithMaxBuffer(n int) Option {
	return func(d *Demuxer) {
		if n > 0 {
			d.maxBuffer = n
		}
	}
}

// WithLogger sets the logger used for skipped frames.
func WithLogger(l *slog.Logger) Option {
	return func(d *Demuxer) {
		if l != nil {
			d.logger = l
		}
	}
}

// withClock is used by tests to pin Frame.Received.
func withClock(now func() time.Time) Option {
	return func(d *Demuxer) { d.now = now }
}

// Demuxer accumulates stream bytes and hands out one JPEG frame per call.
// It is not safe for concurrent use.
type Demuxer struct {
	buf       []byte
	scanned   int // offset from which the end-marker search resumes
	maxBuffer int
	seq       uint64
	stats     Stats
	logger    *slog.Logger
	now       func() time.Time
}

// NewDemuxer creates an empty demuxer.
func NewDemuxer(opts ...Option) *Demuxer {
	d := &Demuxer{
		maxBuffer: DefaultMaxBuffer,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Push appends a chunk. The chunk is copied; callers may reuse it.
func (d *Demuxer) Push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	d.buf = append(d.buf, chunk...)
}

// NextJPEG returns the first complete SOI..EOI slice in the buffer, or false when
// none is buffered yet. Bytes preceding the start marker are discarded.
func (d *Demuxer) NextJPEG() ([]byte, bool) {
	start := bytes.Index(d.buf, startMarker)
	if start < 0 {
		d.compact()
		return nil, false
	}
	if start > 0 {
		d.discard(start)
	}

	from := max(d.scanned, len(startMarker))
	end := -1
	if from < len(d.buf) {
		if i := bytes.Index(d.buf[from:], endMarker); i >= 0 {
			end = from + i
		}
	}
	if end < 0 {
		// The last byte may be the first half of a split end marker.
		d.scanned = max(len(d.buf)-1, len(startMarker))
		if len(d.buf) > d.maxBuffer {
			d.overflow()
		}
		return nil, false
	}

	n := end + len(endMarker)
	frame := bytes.Clone(d.buf[:n])
	d.buf = append(d.buf[:0], d.buf[n:]...)
	d.scanned = 0
	return frame, true
}

// Next returns the next decodable frame. Slices that fail to decode are dropped
// and the scan continues with whatever else is buffered.
func (d *Demuxer) Next() (*Frame, bool) {
	for {
		data, ok := d.NextJPEG()
		if !ok {
			return nil, false
		}
		img, err := utils.DecodeJPEG(data)
		if err != nil {
			d.stats.DecodeErrors++
			d.logger.Debug("Skipping undecodable frame", "bytes", len(data), "error", err)
			continue
		}
		d.seq++
		d.stats.Frames++
		b := img.Bounds()
		return &Frame{
			Seq:      d.seq,
			Image:    img,
			Width:    b.Dx(),
			Height:   b.Dy(),
			Size:     len(data),
			Received: d.now(),
		}, true
	}
}

// Buffered reports how many bytes are waiting in the buffer.
func (d *Demuxer) Buffered() int { return len(d.buf) }

// Stats returns a copy of the counters.
func (d *Demuxer) Stats() Stats { return d.stats }

// Reset drops all buffered bytes. Counters and sequence numbers are kept.
func (d *Demuxer) Reset() {
	d.buf = d.buf[:0]
	d.scanned = 0
}

// compact handles a buffer without any start marker: everything goes except a
// trailing 0xFF that may begin a marker split across chunks.
func (d *Demuxer) compact() {
	keep := 0
	if n := len(d.buf); n > 0 && d.buf[n-1] == 0xFF {
		keep = 1
	}
	if drop := len(d.buf) - keep; drop > 0 {
		d.discard(drop)
	}
}

// overflow abandons the open frame at the head of the buffer.
func (d *Demuxer) overflow() {
	d.stats.Overflows++
	size := len(d.buf)
	if i := bytes.Index(d.buf[len(startMarker):], startMarker); i >= 0 {
		d.discard(i + len(startMarker))
	} else {
		d.compact()
	}
	d.logger.Warn("Abandoned oversized frame", "buffered", size, "limit", d.maxBuffer)
}

func (d *Demuxer) discard(n int) {
	if n <= 0 {
		return
	}
	n = min(n, len(d.buf))
	d.stats.DiscardedBytes += uint64(n)
	d.buf = append(d.buf[:0], d.buf[n:]...)
	d.scanned = 0
}
