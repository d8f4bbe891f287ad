package mjpeg

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

// OpenHTTP issues a GET against a camera stream URL. connectTimeout bounds the
// dial and the wait for response headers; the body itself is read without a deadline.
func OpenHTTP(ctx context.Context, url string, connectTimeout time.Duration) (io.ReadCloser, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if connectTimeout > 0 {
		dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}
		transport.DialContext = dialer.DialContext
		transport.ResponseHeaderTimeout = connectTimeout
	}
	client := &http.Client{Transport: transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to stream %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("connect to stream %s: unexpected status %s", url, resp.Status)
	}
	return resp.Body, nil
}

// OpenFile opens a recorded MJPEG dump for replay.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	return f, nil
}
