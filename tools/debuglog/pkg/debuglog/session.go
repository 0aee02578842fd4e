package debuglog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"

	"github.com/qxautoml/devtools/tools/debuglog/internal/metrics"
	"github.com/qxautoml/devtools/tools/debuglog/pkg/serial"
)

const (
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second
)

// ErrPortClosed is reported when the port stops returning data without an
// error, for example a pipe whose writer went away.
var ErrPortClosed = errors.New("port closed")

// Opener opens the serial device for one session.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Session keeps an Echoer attached to a port, reopening it after failures
// when Reconnect is set.
type Session struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Opener Opener
	Echoer *Echoer

	// Optional with defaults.
	Reconnect bool
	Backoff   backoff.BackOff
}

func (s *Session) Validate() error {
	if s.Logger == nil {
		return errors.New("logger is required")
	}
	if s.Clock == nil {
		s.Clock = clockwork.NewRealClock()
	}
	if s.Opener == nil {
		return errors.New("opener is required")
	}
	if s.Echoer == nil {
		return errors.New("echoer is required")
	}
	if err := s.Echoer.Validate(); err != nil {
		return err
	}
	if s.Backoff == nil {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = defaultInitialInterval
		b.MaxInterval = defaultMaxInterval
		s.Backoff = b
	}
	return nil
}

// Run echoes the port until ctx is done, returning nil in that case. Without
// Reconnect the first open or read error ends the session.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s.Backoff.Reset()

	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, serial.ErrUnsupportedPlatform) {
			return err
		}
		if !s.Reconnect {
			if errors.Is(err, ErrPortClosed) {
				return nil
			}
			return err
		}

		wait := s.Backoff.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		metrics.Reconnects.Inc()
		s.Logger.Warn("Reconnecting", "port", s.Echoer.Port, "error", err, "wait", wait)
		if wait <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.Clock.After(wait):
		}
	}
}

func (s *Session) runOnce(ctx context.Context) error {
	rc, err := s.Opener(ctx)
	if err != nil {
		metrics.OpenErrs.Inc()
		return err
	}
	defer rc.Close()

	s.Logger.Info("Port opened", "port", s.Echoer.Port)
	s.Backoff.Reset()
	metrics.Connected.Set(1)
	defer metrics.Connected.Set(0)

	err = s.Echoer.Echo(ctx, rc)
	if err == nil {
		err = ErrPortClosed
	}
	s.Logger.Debug("Port closed", "port", s.Echoer.Port, "error", err)
	return err
}
