package actuator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultSettleDelay is how long to wait after opening a port; many boards
// reset when the port opens.
const DefaultSettleDelay = 2 * time.Second

// ErrLinkClosed is returned when sending on a closed link.
var ErrLinkClosed = errors.New("actuator link closed")

// Port is the minimal device interface. go.bug.st/serial ports satisfy it.
type Port interface {
	io.Writer
	io.Closer
}

// drainer is implemented by ports that can block until output is transmitted.
type drainer interface {
	Drain() error
}

// LinkError reports a failed command delivery.
type LinkError struct {
	Command Command
	Err     error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("send %s: %v", e.Command, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// Link writes command tokens to a port. Sends are fire-and-forget; there is no
// acknowledgement and no retry.
type Link struct {
	name   string
	mu     sync.Mutex
	port   Port
	closed bool
}

// NewLink wraps an open port.
func NewLink(name string, p Port) *Link {
	return &Link{name: name, port: p}
}

var (
	openPort = func(path string, mode *serial.Mode) (Port, error) {
		return serial.Open(path, mode)
	}
	sleep     = time.Sleep
	listPorts = serial.GetPortsList
)

// ListPorts returns the serial devices the OS reports, sorted.
func ListPorts() ([]string, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}

// OpenSerial opens a serial device and waits settle before returning.
func OpenSerial(path string, opts PortOptions, settle time.Duration) (*Link, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := openPort(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	slog.Info("Serial port opened", "port", path, "baud_rate", mode.BaudRate, "settle", settle)
	if settle > 0 {
		sleep(settle)
	}
	return NewLink(path, port), nil
}

// Name identifies the link in logs.
func (l *Link) Name() string { return l.name }

// Send writes exactly one token for cmd.
func (l *Link) Send(cmd Command) error {
	token := cmd.Token()
	if token == "" {
		return &LinkError{Command: cmd, Err: errors.New("no token for command")}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return &LinkError{Command: cmd, Err: ErrLinkClosed}
	}

	n, err := l.port.Write([]byte(token))
	if err != nil {
		return &LinkError{Command: cmd, Err: err}
	}
	if n != len(token) {
		return &LinkError{Command: cmd, Err: io.ErrShortWrite}
	}
	if d, ok := l.port.(drainer); ok {
		if err := d.Drain(); err != nil {
			return &LinkError{Command: cmd, Err: fmt.Errorf("drain: %w", err)}
		}
	}
	return nil
}

// Close releases the port. Further calls are no-ops.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.port.Close(); err != nil {
		return fmt.Errorf("close %s: %w", l.name, err)
	}
	return nil
}
