package mjpeg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"
	"time"

	"github.com/MeKo-Tech/boxguard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestStream_ReadsAllFramesThenEOF(t *testing.T) {
	body := testutil.MJPEGMultipart(
		testutil.JPEGFrame(t, 8, 8, 1),
		testutil.JPEGFrame(t, 8, 8, 2),
		testutil.JPEGFrame(t, 8, 8, 3),
	)
	s := NewStream(bytes.NewReader(body), WithChunkSize(7))

	for want := uint64(1); want <= 3; want++ {
		f, err := s.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, f.Seq)
	}

	_, err := s.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestStream_OneByteReads(t *testing.T) {
	body := testutil.MJPEGMultipart(testutil.JPEGFrame(t, 8, 8, 1))
	s := NewStream(iotest.OneByteReader(bytes.NewReader(body)))

	f, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, f.Width)
}

func TestStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewStream(bytes.NewReader(testutil.JPEGFrame(t, 8, 8, 1)))
	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStream_ReadError(t *testing.T) {
	boom := errors.New("boom")
	s := NewStream(iotest.ErrReader(boom))

	_, err := s.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestStream_DemuxerOptions(t *testing.T) {
	s := NewStream(bytes.NewReader(nil), WithDemuxerOptions(WithMaxBuffer(16)))
	assert.Equal(t, 16, s.Demuxer().maxBuffer)
	assert.Equal(t, DefaultChunkSize, s.chunkSize)
}

func TestStream_Close(t *testing.T) {
	rc := &closeTracker{Reader: bytes.NewReader(nil)}
	require.NoError(t, NewStream(rc).Close())
	assert.True(t, rc.closed)

	assert.NoError(t, NewStream(bytes.NewReader(nil)).Close())
}

func TestOpenHTTP(t *testing.T) {
	body := testutil.MJPEGMultipart(testutil.JPEGFrame(t, 12, 10, 1), testutil.JPEGFrame(t, 12, 10, 2))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stream" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+testutil.MultipartBoundary)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	rc, err := OpenHTTP(context.Background(), srv.URL+"/stream", time.Second)
	require.NoError(t, err)
	s := NewStream(rc)
	defer func() { _ = s.Close() }()

	for i := 0; i < 2; i++ {
		f, err := s.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 12, f.Width)
	}
	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	_, err = OpenHTTP(context.Background(), srv.URL+"/missing", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOpenHTTP_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := OpenHTTP(context.Background(), url, 200*time.Millisecond)
	assert.Error(t, err)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.mjpeg")
	require.NoError(t, os.WriteFile(path, testutil.MJPEGMultipart(testutil.JPEGFrame(t, 8, 8, 1)), 0o600))

	rc, err := OpenFile(path)
	require.NoError(t, err)
	s := NewStream(rc)
	defer func() { _ = s.Close() }()

	_, err = s.Next(context.Background())
	require.NoError(t, err)

	_, err = OpenFile(filepath.Join(t.TempDir(), "missing.mjpeg"))
	assert.Error(t, err)
}
