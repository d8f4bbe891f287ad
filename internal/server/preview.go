package server

import (
	"errors"
	"image"
	"log/slog"
	"net/http"
	"sync"

	"github.com/MeKo-Tech/boxguard/internal/pipeline"
	"github.com/MeKo-Tech/boxguard/internal/utils"
)

type previewFrame struct {
	res *pipeline.Result
	img image.Image
}

// Publish hands a processed frame to the preview renderer and broadcasts
// emitted transitions. It never blocks: if the renderer is busy the frame is
// dropped.
func (s *Server) Publish(res *pipeline.Result, img image.Image) {
	if res == nil {
		return
	}
	if res.Transition.Emitted {
		s.hub.broadcast(WebSocketMessage{Type: "transition", Payload: newTransitionEvent(res)})
	}
	if img == nil {
		return
	}
	select {
	case s.frames <- previewFrame{res: res, img: img}:
	default:
		previewFramesTotal.WithLabelValues("dropped").Inc()
	}
}

func (s *Server) previewLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case f := <-s.frames:
			s.renderPreview(f)
		}
	}
}

func (s *Server) renderPreview(f previewFrame) {
	out := pipeline.RenderOverlay(f.img, f.res.Zone, f.res.InZone, s.okLabels)
	data, err := utils.EncodeJPEG(out, s.config.PreviewQuality)
	if err != nil {
		previewFramesTotal.WithLabelValues("error").Inc()
		slog.Warn("Failed to encode preview frame", "seq", f.res.Seq, "error", err)
		return
	}

	s.previewMu.Lock()
	s.lastPreview = data
	s.previewMu.Unlock()

	s.preview.UpdateJPEG(data)
	previewFramesTotal.WithLabelValues("rendered").Inc()
}

func (s *Server) latestPreview() []byte {
	s.previewMu.RLock()
	defer s.previewMu.RUnlock()
	return s.lastPreview
}

var errPreviewClosed = errors.New("preview stream closed")

// streamWriter lets the mjpeg stream keep writing after the handler returned
// without touching the finished response.
type streamWriter struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	header http.Header
	closed bool
}

func (sw *streamWriter) Header() http.Header {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return sw.header
	}
	return sw.w.Header()
}

func (sw *streamWriter) WriteHeader(code int) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if !sw.closed {
		sw.w.WriteHeader(code)
	}
}

func (sw *streamWriter) Write(b []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return 0, errPreviewClosed
	}
	n, err := sw.w.Write(b)
	if f, ok := sw.w.(http.Flusher); ok && err == nil {
		f.Flush()
	}
	return n, err
}

func (sw *streamWriter) close() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.closed = true
}

// previewHandler serves the MJPEG preview until the client leaves or the
// server closes. The stream's own goroutine exits on its next frame write.
func (s *Server) previewHandler(w http.ResponseWriter, r *http.Request) {
	sw := &streamWriter{w: w, header: make(http.Header)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.preview.ServeHTTP(sw, r)
	}()

	select {
	case <-done:
	case <-r.Context().Done():
	case <-s.done:
	}
	sw.close()
}
