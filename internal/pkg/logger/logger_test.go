package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("qualquer"))
}

func TestZapLogger_WritesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &ZapLogger{z: zap.New(core)}

	l.Info("Lote recebido.", map[string]interface{}{"batch_id": "b1"})
	l.Debug("Sem campos.", nil)

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "Lote recebido.", entries[0].Message)
	assert.Equal(t, "b1", entries[0].ContextMap()["batch_id"])
	assert.Empty(t, entries[1].Context)
}
