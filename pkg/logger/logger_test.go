package logger_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pagecraft/pagecraft/pkg/logger"
)

func TestLog(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).Make()
	require.NoError(t, err)
	require.NotNil(t, templogger)
	// Get Stats Before
	require.Equal(t, buff.Len(), 0)
	templogger.Logger.Info().Msg("Test")
	// Get Stats After
	require.Contains(t, buff.String(), "Test")
}

func TestLevel(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).WithLevel("warn").Make()
	require.NoError(t, err)

	templogger.Logger.Info().Msg("hidden")
	require.Zero(t, buff.Len())
	templogger.Logger.Warn().Msg("shown")
	require.Contains(t, buff.String(), "shown")

	_, err = logger.New().WithLevel("loud").Make()
	require.Error(t, err)
}

func TestFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	templogger, err := logger.New().FromPath(path).Make()
	require.NoError(t, err)
	require.NotNil(t, templogger.LogFile)
	templogger.Logger.Info().Msg("to file")
	require.NoError(t, templogger.Close())
}
