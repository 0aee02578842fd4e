package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/qxautoml/devtools/tools/debuglog/internal/metrics"
	"github.com/qxautoml/devtools/tools/debuglog/pkg/debuglog"
	"github.com/qxautoml/devtools/tools/debuglog/pkg/serial"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultBaudRate = 9600
	defaultTimeout  = 200 * time.Millisecond
)

// usageError is a bad invocation; it exits 2 after printing usage.
type usageError string

func (e usageError) Error() string { return string(e) }

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fs.PrintDefaults()
	}

	err := run(fs, os.Args[1:])
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(os.Stderr, err)
		var ue usageError
		if errors.As(err, &ue) {
			fs.Usage()
		}
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	var ue usageError
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return 0
	case errors.As(err, &ue):
		return 2
	default:
		return 1
	}
}

func run(fs *flag.FlagSet, args []string) error {
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		return nil
	}

	log := newLogger(cfg.Verbose)

	if cfg.MetricsAddr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", cfg.MetricsAddr)
			if err != nil {
				log.Error("Failed to start prometheus metrics server listener", "error", err)
				os.Exit(1)
			}
			log.Info("Prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("Failed to start prometheus metrics server", "error", err)
				os.Exit(1)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session := &debuglog.Session{
		Logger: log,
		Opener: func(ctx context.Context) (io.ReadCloser, error) {
			port, err := serial.Open(cfg.Port, cfg.BaudRate, cfg.Timeout)
			if err != nil {
				return nil, err
			}
			return port, nil
		},
		Echoer: &debuglog.Echoer{
			Out:    os.Stdout,
			Format: cfg.Format,
			Port:   cfg.Port,
		},
		Reconnect: cfg.Reconnect,
	}

	log.Debug("Reading debug log", "port", cfg.Port, "baud", cfg.BaudRate, "timeout", cfg.Timeout, "format", cfg.Format)
	if err := session.Run(ctx); err != nil {
		return fmt.Errorf("debug log session on %s failed: %w", cfg.Port, err)
	}
	log.Debug("Debug log session ended", "port", cfg.Port)
	return nil
}

type Config struct {
	ShowVersion bool
	Verbose     bool
	MetricsAddr string

	Port      string
	BaudRate  int
	Timeout   time.Duration
	Format    debuglog.Format
	Reconnect bool
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func loadConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	var format string

	fs.BoolVar(&cfg.ShowVersion, "version", false, "show version and exit")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "verbose mode - show debug logs")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", getenv("DEBUGLOG_METRICS_ADDR", ""), "address to listen on for prometheus metrics, disabled when empty (env: DEBUGLOG_METRICS_ADDR)")

	fs.StringVarP(&cfg.Port, "port", "p", getenv("DEBUGLOG_PORT", ""), "serial port to read, e.g. /dev/ttyUSB0 (env: DEBUGLOG_PORT)")
	fs.IntVarP(&cfg.BaudRate, "baud", "b", getenvInt("DEBUGLOG_BAUD", defaultBaudRate), "baud rate (env: DEBUGLOG_BAUD)")
	fs.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "read timeout; partial lines are printed when it expires")
	fs.StringVarP(&format, "format", "f", getenv("DEBUGLOG_FORMAT", string(debuglog.FormatText)), "output format: text, repr or json (env: DEBUGLOG_FORMAT)")
	fs.BoolVar(&cfg.Reconnect, "reconnect", false, "reopen the port with backoff when it goes away")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return Config{}, err
		}
		return Config{}, usageError(err.Error())
	}

	if cfg.ShowVersion {
		return cfg, nil
	}

	if cfg.Port == "" {
		return Config{}, usageError("serial port is empty (set DEBUGLOG_PORT or --port)")
	}
	if !serial.SupportedBaudRate(cfg.BaudRate) {
		return Config{}, usageError(fmt.Sprintf("unsupported baud rate %d", cfg.BaudRate))
	}
	if cfg.Timeout <= 0 {
		return Config{}, usageError("timeout must be > 0")
	}
	f, err := debuglog.ParseFormat(format)
	if err != nil {
		return Config{}, usageError(err.Error())
	}
	cfg.Format = f

	return cfg, nil
}

// Logs go to stderr so stdout carries only the device output.
func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format("2006-01-02T15:04:05.000Z"))
			}
			return a
		},
	}))
}
