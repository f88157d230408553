package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewFallsBackToInfo(t *testing.T) {
	log, err := New("not-a-level", "production")
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zapcore.InfoLevel))
	require.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewDebugDevelopment(t *testing.T) {
	log, err := New("debug", "development")
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zapcore.DebugLevel))
	require.NotNil(t, WithService(log, "forwarder"))
}
