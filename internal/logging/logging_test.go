package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{" WARN ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}

	_, err := ParseLevel("chatty")
	assert.ErrorContains(t, err, `invalid log level "chatty"`)
}

func TestNew(t *testing.T) {
	for _, development := range []bool{true, false} {
		logger, err := New("warn", development)
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	}

	_, err := New("chatty", true)
	assert.Error(t, err)
}

func TestMustFallsBackToNop(t *testing.T) {
	logger := Must("chatty", false)
	require.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zapcore.FatalLevel))

	assert.True(t, Must("debug", true).Core().Enabled(zapcore.DebugLevel))
}
