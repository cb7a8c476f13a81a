package logging

import (
	"path/filepath"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/require"
)

func TestNewWithFileRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hub.log")

	loggers, err := New(path, true)
	require.NoError(t, err)
	require.NotNil(t, loggers.JSON)
	require.NotNil(t, loggers.Text)
	require.Equal(t, slog.LevelDebug, loggers.Level.Level())

	loggers.JSON.Info("hello", "k", "v")
	require.NoError(t, loggers.Close())

	require.FileExists(t, path)
}

func TestForComponentTagsLogger(t *testing.T) {
	loggers, err := New("", false)
	require.NoError(t, err)
	child := ForComponent(loggers.JSON, "ssdp")
	require.NotNil(t, child)
}
