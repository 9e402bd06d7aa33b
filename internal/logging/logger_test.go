package logging

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesLevelAndFormat(t *testing.T) {
	logger, err := New(Options{Level: "DEBUG", Format: "text"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNewDefaultsToJSON(t *testing.T) {
	logger, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestNewRejectsUnknownValues(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)

	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := New(Options{File: path})
	require.NoError(t, err)

	logger.Info("hello")
	assert.FileExists(t, path)
}

func TestInitSentryWithoutDSNIsNoop(t *testing.T) {
	hub, flush, err := InitSentry(Discard(), SentrySettings{})
	require.NoError(t, err)
	assert.Nil(t, hub)
	flush()
}
