//go:build !linux

package serial

import (
	"os"
	"time"
)

// Standard rates, so flag validation matches linux. Open always fails here.
var supportedBaudRates = map[int]uint32{
	1200:    1200,
	2400:    2400,
	4800:    4800,
	9600:    9600,
	19200:   19200,
	38400:   38400,
	57600:   57600,
	115200:  115200,
	230400:  230400,
	460800:  460800,
	921600:  921600,
	1000000: 1000000,
	2000000: 2000000,
	3000000: 3000000,
	4000000: 4000000,
}

func open(name string, baudRate int, timeout time.Duration) (*os.File, error) {
	return nil, ErrUnsupportedPlatform
}
