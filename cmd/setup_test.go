package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/kozaktomas/facelog/internal/config"
	"github.com/kozaktomas/facelog/internal/facematch"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m5s", formatDuration(2*time.Minute+5*time.Second))
	assert.Equal(t, "1h30m", formatDuration(90*time.Minute))
}

func TestNewLoggerFlagsOverrideConfig(t *testing.T) {
	t.Cleanup(func() { logLevel, logFormat = "", "" })

	cfg := &config.Config{Log: config.LogConfig{Level: "info", Format: "json"}}
	logLevel = "debug"
	logFormat = "console"

	log, err := newLogger(cfg)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	logLevel = "loud"
	_, err = newLogger(cfg)
	assert.Error(t, err)
}

func TestNewDetectorRequiresCascade(t *testing.T) {
	cfg := &config.Config{Face: config.FaceConfig{
		CascadePath: "/nonexistent/facefinder",
		Profiles:    config.DefaultProfiles(),
	}}

	_, err := newDetector(cfg)
	assert.ErrorIs(t, err, facematch.ErrCascadeNotLoaded)
}
