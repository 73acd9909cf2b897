package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"brainrotMarket/internal/ports"
)

var _ ports.Logger = (*ZapLogger)(nil)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" Warn ", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestZapLogger_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core))
	ctx := context.Background()

	l.Info(ctx, "Trade created", map[string]interface{}{"tradeID": "t1", "offeringTotal": 12.5})
	l.Error(ctx, errors.New("boom"), "Failed to update trade", map[string]interface{}{"tradeID": "t1"})
	l.Debug(ctx, "no fields")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "Trade created", entries[0].Message)
	ctxMap := entries[0].ContextMap()
	assert.Equal(t, "t1", ctxMap["tradeID"])
	assert.Equal(t, 12.5, ctxMap["offeringTotal"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])

	assert.Empty(t, entries[2].Context)
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	core, logs := observer.New(LevelWarn.zapLevel())
	l := NewFromZap(zap.New(core))
	ctx := context.Background()

	l.Debug(ctx, "dropped")
	l.Info(ctx, "dropped")
	l.Warn(ctx, "kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestNewZapLogger(t *testing.T) {
	l, err := NewZapLogger(LevelDebug)
	require.NoError(t, err)
	l.Named("test").Debug(context.Background(), "hello")
}

func TestZapLogger_Named(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	root := NewFromZap(zap.New(core))

	root.Named("catalog").Info(context.Background(), "Catalog cache invalidated")
	root.Named("http").Named("ws").Warn(context.Background(), "Client dropped")
	root.Info(context.Background(), "Logger initialized")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, "catalog", entries[0].LoggerName)
	assert.Equal(t, "http.ws", entries[1].LoggerName)
	assert.Empty(t, entries[2].LoggerName)
}
