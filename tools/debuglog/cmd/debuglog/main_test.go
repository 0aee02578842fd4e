package main

import (
	"errors"
	"io"
	"runtime"
	"testing"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/qxautoml/devtools/tools/debuglog/pkg/debuglog"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("debuglog", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DEBUGLOG_PORT", "DEBUGLOG_BAUD", "DEBUGLOG_FORMAT", "DEBUGLOG_METRICS_ADDR"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig(newFlagSet(), []string{"-p", "/dev/ttyUSB0"})
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB0", cfg.Port)
	require.Equal(t, 9600, cfg.BaudRate)
	require.Equal(t, 200*time.Millisecond, cfg.Timeout)
	require.Equal(t, debuglog.FormatText, cfg.Format)
	require.False(t, cfg.Reconnect)
	require.Empty(t, cfg.MetricsAddr)
}

func TestLoadConfig_Flags(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig(newFlagSet(), []string{
		"--port", "/dev/ttyACM1",
		"--baud", "115200",
		"--timeout", "1s",
		"--format", "json",
		"--reconnect",
		"--metrics-addr", ":9100",
		"-v",
	})
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM1", cfg.Port)
	require.Equal(t, 115200, cfg.BaudRate)
	require.Equal(t, time.Second, cfg.Timeout)
	require.Equal(t, debuglog.FormatJSON, cfg.Format)
	require.True(t, cfg.Reconnect)
	require.True(t, cfg.Verbose)
	require.Equal(t, ":9100", cfg.MetricsAddr)
}

func TestLoadConfig_EnvFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEBUGLOG_PORT", "/dev/ttyS1")
	t.Setenv("DEBUGLOG_BAUD", "57600")
	t.Setenv("DEBUGLOG_FORMAT", "repr")
	t.Setenv("DEBUGLOG_METRICS_ADDR", "127.0.0.1:9200")

	cfg, err := loadConfig(newFlagSet(), nil)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyS1", cfg.Port)
	require.Equal(t, 57600, cfg.BaudRate)
	require.Equal(t, debuglog.FormatRepr, cfg.Format)
	require.Equal(t, "127.0.0.1:9200", cfg.MetricsAddr)

	// Flags win over the environment.
	cfg, err = loadConfig(newFlagSet(), []string{"-p", "/dev/ttyS2", "-b", "9600", "-f", "text"})
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyS2", cfg.Port)
	require.Equal(t, 9600, cfg.BaudRate)
	require.Equal(t, debuglog.FormatText, cfg.Format)
}

func TestLoadConfig_UsageErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing port", nil, "serial port is empty"},
		{"unsupported baud", []string{"-p", "/dev/ttyUSB0", "--baud", "1234"}, "unsupported baud rate 1234"},
		{"zero timeout", []string{"-p", "/dev/ttyUSB0", "--timeout", "0s"}, "timeout must be > 0"},
		{"negative timeout", []string{"-p", "/dev/ttyUSB0", "--timeout", "-1s"}, "timeout must be > 0"},
		{"unknown format", []string{"-p", "/dev/ttyUSB0", "--format", "hex"}, "unknown format"},
		{"unknown flag", []string{"-p", "/dev/ttyUSB0", "--parity", "even"}, "unknown flag"},
		{"bad timeout value", []string{"-p", "/dev/ttyUSB0", "--timeout", "soon"}, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)

			_, err := loadConfig(newFlagSet(), tt.args)
			require.ErrorContains(t, err, tt.wantErr)

			var ue usageError
			require.True(t, errors.As(err, &ue))
			require.Equal(t, 2, exitCode(err))
		})
	}
}

func TestLoadConfig_VersionNeedsNoPort(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig(newFlagSet(), []string{"--version"})
	require.NoError(t, err)
	require.True(t, cfg.ShowVersion)
}

func TestLoadConfig_Help(t *testing.T) {
	clearEnv(t)

	_, err := loadConfig(newFlagSet(), []string{"--help"})
	require.ErrorIs(t, err, flag.ErrHelp)
	require.Equal(t, 0, exitCode(err))
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, exitCode(nil))
	require.Equal(t, 2, exitCode(usageError("bad flag")))
	require.Equal(t, 1, exitCode(errors.New("input/output error")))
}

func TestRun_UnsupportedPlatform(t *testing.T) {
	if runtime.GOOS == "linux" {
		t.Skip("serial ports are supported on linux")
	}
	clearEnv(t)

	err := run(newFlagSet(), []string{"-p", "COM3"})
	require.ErrorContains(t, err, "unsupported platform")
	require.Equal(t, 1, exitCode(err))
}
