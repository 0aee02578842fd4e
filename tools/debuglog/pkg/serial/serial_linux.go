//go:build linux

package serial

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

var supportedBaudRates = map[int]uint32{
	1200:    unix.B1200,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	3000000: unix.B3000000,
	4000000: unix.B4000000,
}

// makeRaw matches glibc cfmakeraw: no input or output processing,
// non-canonical mode, eight data bits.
func makeRaw(t *unix.Termios) {
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
}

func configure(t *unix.Termios, rate uint32, timeout time.Duration) {
	makeRaw(t)

	t.Iflag |= unix.IGNPAR
	t.Cflag |= unix.CREAD | unix.CLOCAL
	t.Cflag &^= unix.CSTOPB | unix.CRTSCTS
	t.Iflag &^= unix.IXOFF | unix.IXANY

	// Return whatever is buffered, or nothing after VTIME deciseconds.
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = vtime(timeout)

	t.Cflag &^= unix.CBAUD
	t.Cflag |= rate
	t.Ispeed = rate
	t.Ospeed = rate
}

func open(name string, baudRate int, timeout time.Duration) (*os.File, error) {
	rate, ok := supportedBaudRates[baudRate]
	if !ok {
		return nil, fmt.Errorf("unsupported baud rate: %d", baudRate)
	}

	// Non-blocking open so a missing carrier does not hang us.
	f, err := os.OpenFile(name, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0o666)
	if err != nil {
		return nil, err
	}
	// VTIME drives the timeout, so reads must block in the kernel.
	if err := syscall.SetNonblock(int(f.Fd()), false); err != nil {
		f.Close()
		return nil, err
	}

	fd := int(f.Fd())
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s is not a terminal: %w", name, err)
	}
	configure(t, rate, timeout)
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to configure %s: %w", name, err)
	}
	return f, nil
}
