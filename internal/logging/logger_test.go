package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		development bool
		level       string
		wantLevel   zapcore.Level
	}{
		{name: "development default", development: true, wantLevel: zapcore.DebugLevel},
		{name: "production default", development: false, wantLevel: zapcore.InfoLevel},
		{name: "production override", development: false, level: "warn", wantLevel: zapcore.WarnLevel},
		{name: "development override", development: true, level: "ERROR", wantLevel: zapcore.ErrorLevel},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			logger, err := New(tc.development, tc.level)
			require.NoError(t, err)
			defer logger.Sync() //nolint:errcheck // best-effort flush
			require.True(t, logger.Core().Enabled(tc.wantLevel))
			if tc.wantLevel > zapcore.DebugLevel {
				require.False(t, logger.Core().Enabled(tc.wantLevel-1))
			}
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := New(false, "loud")
	require.ErrorContains(t, err, "parse log level")
}
