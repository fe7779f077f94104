package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "console.log")

	logger, err := New("info", "json", path)
	require.NoError(t, err)
	logger.Info("hello from test")
	logger.Debug("hidden")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello from test")
	require.False(t, strings.Contains(string(data), "hidden"))
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("loud", "json", "")
	require.Error(t, err)

	_, err = New("info", "xml", "")
	require.Error(t, err)
}

func TestNewConsoleFormat(t *testing.T) {
	logger, err := New("debug", "console", filepath.Join(t.TempDir(), "c.log"))
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
