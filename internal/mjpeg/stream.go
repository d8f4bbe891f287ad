package mjpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is the read size used against the camera stream.
const DefaultChunkSize = 1024

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithChunkSize sets the size of each read.
func WithChunkSize(n int) StreamOption {
	return func(s *Stream) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithDemuxerOptions forwards options to the underlying Demuxer.
func WithDemuxerOptions(opts ...Option) StreamOption {
	return func(s *Stream) { s.demuxOpts = append(s.demuxOpts, opts...) }
}

// Stream pulls fixed-size chunks from a reader until a frame is available.
type Stream struct {
	r         io.Reader
	demux     *Demuxer
	demuxOpts []Option
	chunkSize int
	chunk     []byte
	eof       bool
}

// NewStream wraps r.
func NewStream(r io.Reader, opts ...StreamOption) *Stream {
	s := &Stream{r: r, chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(s)
	}
	s.demux = NewDemuxer(s.demuxOpts...)
	s.chunk = make([]byte, s.chunkSize)
	return s
}

// Demuxer exposes the buffer state for metrics.
func (s *Stream) Demuxer() *Demuxer { return s.demux }

// Next blocks until a frame is decoded. It returns io.EOF once the reader is
// exhausted and no complete frame remains, and ctx.Err() when cancelled.
// Cancellation is checked between chunks.
func (s *Stream) Next(ctx context.Context) (*Frame, error) {
	for {
		if f, ok := s.demux.Next(); ok {
			return f, nil
		}
		if s.eof {
			return nil, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := s.r.Read(s.chunk)
		if n > 0 {
			s.demux.Push(s.chunk[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.eof = true
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("read stream: %w", err)
		}
	}
}

// Close closes the underlying reader if it is closable.
func (s *Stream) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
