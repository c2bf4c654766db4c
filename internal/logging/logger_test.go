package logging_test

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conntree/internal/logging"
)

func TestNew_RenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(slog.LevelInfo, &buf)

	logger.Info("save failed", "error", errors.New("disk full"))
	logger.Debug("hidden")

	assert.Contains(t, buf.String(), `err="disk full"`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestParseLevel(t *testing.T) {
	level, err := logging.ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	level, err = logging.ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = logging.ParseLevel("loud")
	assert.Error(t, err)
}

func TestOpenFile_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "conntree.log")
	file, err := logging.OpenFile(path)
	require.NoError(t, err)
	defer file.Close()

	logger := logging.New(slog.LevelInfo, file)
	logger.Info("hello")
	assert.FileExists(t, path)
}
