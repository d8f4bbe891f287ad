package actuator

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// DryRunPort logs tokens instead of writing them to hardware.
type DryRunPort struct {
	mu     sync.Mutex
	logger *slog.Logger
	writes []string
}

// NewDryRunPort returns a port that logs with l (slog.Default when nil).
func NewDryRunPort(l *slog.Logger) *DryRunPort {
	if l == nil {
		l = slog.Default()
	}
	return &DryRunPort{logger: l}
}

func (p *DryRunPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	token := strings.TrimSpace(string(b))
	p.writes = append(p.writes, token)
	p.logger.Info("Actuator dry run", "token", token)
	return len(b), nil
}

// Close is a no-op.
func (p *DryRunPort) Close() error { return nil }

// Tokens returns the tokens seen so far.
func (p *DryRunPort) Tokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}

// TestablePort is a scriptable Port for tests in this and other packages.
type TestablePort struct {
	mu sync.Mutex

	// WriteBuffer captures data written to the port
	WriteBuffer bytes.Buffer

	// WriteError is returned by the next Write call if set
	WriteError error

	// ShortWrite makes the next Write report one byte less than given
	ShortWrite bool

	// DrainError is returned by the next Drain call if set
	DrainError error

	// CloseError is returned by Close if set
	CloseError error

	Closed     bool
	WriteCalls int
	DrainCalls int
	CloseCalls int
}

// NewTestablePort creates an empty TestablePort.
func NewTestablePort() *TestablePort { return &TestablePort{} }

func (t *TestablePort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++
	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	if t.ShortWrite && len(p) > 0 {
		t.ShortWrite = false
		t.WriteBuffer.Write(p[:len(p)-1])
		return len(p) - 1, nil
	}
	return t.WriteBuffer.Write(p)
}

// Drain implements the optional drain hook.
func (t *TestablePort) Drain() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.DrainCalls++
	if t.DrainError != nil {
		err := t.DrainError
		t.DrainError = nil
		return err
	}
	return nil
}

// Close marks the port closed.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.CloseCalls++
	t.Closed = true
	return t.CloseError
}

// SetWriteError makes the next Write fail with err.
func (t *TestablePort) SetWriteError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.WriteError = err
}

// Written returns everything written so far.
func (t *TestablePort) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.WriteBuffer.String()
}

// Tokens splits the written data into tokens.
func (t *TestablePort) Tokens() []string {
	return strings.Fields(t.Written())
}
