package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rovshanmuradov/memetrader/internal/config"
)

func TestWithCycleAddsCorrelationID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := WithCycle(zap.New(core), "buy")
	l.Info("tick")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "buy", fields["cycle"])
	assert.NotEmpty(t, fields["correlation_id"])
}

func TestFromConfigKeepsDefaults(t *testing.T) {
	cfg := FromConfig(config.LogConfig{File: "x.log", Debug: true})
	assert.Equal(t, "x.log", cfg.LogFile)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.True(t, cfg.Development)
}

func TestNewWritesToFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "test.log")

	l, err := New(cfg)
	require.NoError(t, err)
	l.WithComponent("test").Info("hello")
	_ = l.Sync()
	assert.FileExists(t, cfg.LogFile)
}
