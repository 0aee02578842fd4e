package debuglog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/qxautoml/devtools/tools/debuglog/internal/metrics"
	"github.com/qxautoml/devtools/tools/debuglog/pkg/serial"
)

// Echoer copies newline framed lines from a serial port to Out.
type Echoer struct {
	Out    io.Writer
	Format Format
	// Port is the device name attached to json records.
	Port  string
	Clock clockwork.Clock
}

type record struct {
	Time time.Time `json:"time"`
	Port string    `json:"port"`
	Line string    `json:"line"`
}

func (e *Echoer) Validate() error {
	if e.Out == nil {
		return errors.New("output writer is required")
	}
	if e.Format == "" {
		e.Format = FormatText
	}
	if _, err := ParseFormat(string(e.Format)); err != nil {
		return err
	}
	if e.Clock == nil {
		e.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Echo reads r until it fails or ctx is done. A read timeout flushes any
// partial line, so output never lags the device by more than one timeout.
// Text output stays byte for byte identical to the input.
// It returns ctx.Err() on cancellation and nil when r reaches EOF.
func (e *Echoer) Echo(ctx context.Context, r io.Reader) error {
	if err := e.Validate(); err != nil {
		return err
	}

	br := bufio.NewReader(r)
	var line []byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := br.ReadBytes('\n')
		line = append(line, chunk...)
		if err == nil {
			if werr := e.emit(line); werr != nil {
				return werr
			}
			line = line[:0]
			continue
		}

		if len(line) > 0 {
			if werr := e.emit(line); werr != nil {
				return werr
			}
			line = line[:0]
		}

		switch {
		case errors.Is(err, serial.ErrTimeout):
			metrics.ReadTimeouts.Inc()
		case errors.Is(err, io.EOF):
			return nil
		default:
			metrics.ReadErrs.Inc()
			return fmt.Errorf("failed to read %s: %w", e.Port, err)
		}
	}
}

func (e *Echoer) emit(line []byte) error {
	if line[len(line)-1] == '\n' {
		metrics.Lines.Inc()
	}
	metrics.Bytes.Add(float64(len(line)))

	var err error
	switch e.Format {
	case FormatRepr:
		_, err = io.WriteString(e.Out, strconv.Quote(string(line))+"\n")
	case FormatJSON:
		var b []byte
		b, err = json.Marshal(record{
			Time: e.Clock.Now().UTC(),
			Port: e.Port,
			Line: string(bytes.TrimRight(line, "\r\n")),
		})
		if err == nil {
			_, err = e.Out.Write(append(b, '\n'))
		}
	default:
		_, err = e.Out.Write(line)
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
