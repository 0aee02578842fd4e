package serial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		timeout time.Duration
		want    uint8
	}{
		{0, 1},
		{time.Millisecond, 1},
		{100 * time.Millisecond, 1},
		{150 * time.Millisecond, 2},
		{200 * time.Millisecond, 2},
		{time.Second, 10},
		{25500 * time.Millisecond, 255},
		{time.Minute, 255},
		{-time.Second, 1},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, vtime(tt.timeout), "timeout %s", tt.timeout)
	}
}

func TestClassifyEmptyRead(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		elapsed, timeout time.Duration
		want             error
	}{
		{"immediate return is a hangup", 20 * time.Microsecond, 200 * time.Millisecond, ErrHangup},
		{"well under vtime is a hangup", 60 * time.Millisecond, 200 * time.Millisecond, ErrHangup},
		{"full vtime is a timeout", 200 * time.Millisecond, 200 * time.Millisecond, ErrTimeout},
		{"slightly early vtime is a timeout", 180 * time.Millisecond, 200 * time.Millisecond, ErrTimeout},
		{"rounded up vtime", 120 * time.Millisecond, 150 * time.Millisecond, ErrTimeout},
		{"minimum vtime", 50 * time.Millisecond, time.Millisecond, ErrTimeout},
		{"minimum vtime hangup", time.Millisecond, time.Millisecond, ErrHangup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.ErrorIs(t, classifyEmptyRead(tt.elapsed, tt.timeout), tt.want)
		})
	}
}
