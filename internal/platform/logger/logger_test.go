package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFrom(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	scoped := zap.New(core)

	From(ToContext(context.Background(), scoped)).Info("scoped")
	assert.Equal(t, 1, logs.Len())

	fallback := zap.NewNop()
	assert.Same(t, fallback, From(context.Background(), fallback))
	assert.NotNil(t, From(context.Background()))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, zapcore.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestBuild(t *testing.T) {
	t.Parallel()

	l := Build(Config{Env: "prod", Level: "warn", ServiceName: "employer-onboarding"})
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}
