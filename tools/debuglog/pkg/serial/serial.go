// Package serial opens a raw 8N1 serial line with a read timeout.
package serial

import (
	"errors"
	"io"
	"os"
	"time"
)

var (
	// ErrTimeout is returned by Port.Read when no byte arrived within the
	// configured timeout.
	ErrTimeout = errors.New("serial: read timeout")

	// ErrHangup is returned by Port.Read when the line was hung up, e.g. a
	// USB adapter was unplugged. The port must be reopened.
	ErrHangup = errors.New("serial: hangup")

	ErrUnsupportedPlatform = errors.New("serial: unsupported platform")
)

// Port is an open serial device.
type Port struct {
	f       *os.File
	name    string
	baud    int
	timeout time.Duration
}

// Open configures name for raw 8N1 I/O at baudRate. Reads block for at most
// timeout before returning ErrTimeout.
func Open(name string, baudRate int, timeout time.Duration) (*Port, error) {
	f, err := open(name, baudRate, timeout)
	if err != nil {
		return nil, err
	}
	return &Port{f: f, name: name, baud: baudRate, timeout: timeout}, nil
}

// Read returns ErrTimeout when no data arrived within the timeout. A hung up
// tty also reads zero bytes, but immediately; that is reported as ErrHangup.
func (p *Port) Read(b []byte) (int, error) {
	start := time.Now()
	n, err := p.f.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, classifyEmptyRead(time.Since(start), p.timeout)
	}
	return n, err
}

// classifyEmptyRead tells a VTIME expiry from a hangup by how long the empty
// read took. Anything under half the effective VTIME is not a timeout.
func classifyEmptyRead(elapsed, timeout time.Duration) error {
	if elapsed < time.Duration(vtime(timeout))*100*time.Millisecond/2 {
		return ErrHangup
	}
	return ErrTimeout
}

func (p *Port) Write(b []byte) (int, error) { return p.f.Write(b) }

func (p *Port) Close() error { return p.f.Close() }

func (p *Port) Name() string { return p.name }

func (p *Port) BaudRate() int { return p.baud }

func (p *Port) Timeout() time.Duration { return p.timeout }

// SupportedBaudRate reports whether rate can be configured on this platform.
func SupportedBaudRate(rate int) bool {
	_, ok := supportedBaudRates[rate]
	return ok
}

// vtime converts a read timeout to termios VTIME deciseconds. VTIME of zero
// would turn reads into polls, so the result is at least one.
func vtime(timeout time.Duration) uint8 {
	ds := (timeout + 99*time.Millisecond) / (100 * time.Millisecond)
	switch {
	case ds < 1:
		return 1
	case ds > 255:
		return 255
	}
	return uint8(ds)
}
