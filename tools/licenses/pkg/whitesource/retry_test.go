package whitesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	apiErr := func(status int) error {
		return newError(ErrorKindAPI, "op", "x", nil).withStatus(status)
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"wrapped deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), false},
		{"net timeout", timeoutError{}, true},
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused in network error", newError(ErrorKindNetwork, "op", "x", syscall.ECONNREFUSED), true},
		{"network error without transport cause", newError(ErrorKindNetwork, "op", "x", errors.New("no such host")), false},
		{"broken pipe message", errors.New("write: broken pipe"), true},
		{"429", apiErr(http.StatusTooManyRequests), true},
		{"500", apiErr(http.StatusInternalServerError), true},
		{"504", apiErr(http.StatusGatewayTimeout), true},
		{"400", apiErr(http.StatusBadRequest), false},
		{"auth", newError(ErrorKindAuth, "op", "x", nil).withStatus(401), false},
		{"decode", newError(ErrorKindDecode, "op", "x", io.ErrUnexpectedEOF), false},
		{"plain", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestRetryOptions_Defaults(t *testing.T) {
	t.Parallel()

	opt := RetryOptions{}.withDefaults()
	require.Equal(t, defaultMaxAttempts, opt.MaxAttempts)
	require.Equal(t, defaultInitialInterval, opt.InitialInterval)
	require.Equal(t, defaultMaxInterval, opt.MaxInterval)

	custom := RetryOptions{MaxAttempts: 1, InitialInterval: time.Second, MaxInterval: time.Minute}.withDefaults()
	require.Equal(t, 1, custom.MaxAttempts)
	require.Equal(t, time.Second, custom.InitialInterval)
	require.Equal(t, time.Minute, custom.MaxInterval)
}

func TestDoRetry(t *testing.T) {
	t.Parallel()

	t.Run("stops on permanent error", func(t *testing.T) {
		t.Parallel()

		attempts := 0
		perm := newError(ErrorKindAPI, "op", "bad", nil).withStatus(400)
		_, err := doRetry(context.Background(), logger, fastRetry(), func(context.Context) (int, error) {
			attempts++
			return 0, perm
		})
		require.ErrorIs(t, err, perm)
		require.Equal(t, 1, attempts)
	})

	t.Run("returns value after transient failures", func(t *testing.T) {
		t.Parallel()

		attempts := 0
		v, err := doRetry(context.Background(), logger, fastRetry(), func(context.Context) (int, error) {
			attempts++
			if attempts < 3 {
				return 0, syscall.ECONNRESET
			}
			return 42, nil
		})
		require.NoError(t, err)
		require.Equal(t, 42, v)
		require.Equal(t, 3, attempts)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		t.Parallel()

		attempts := 0
		_, err := doRetry(context.Background(), logger, fastRetry(), func(context.Context) (int, error) {
			attempts++
			return 0, io.EOF
		})
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, 3, attempts)
	})
}
