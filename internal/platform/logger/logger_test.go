package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs(t *testing.T) {
	got := sanitizeKVs([]interface{}{
		"student_id", "s1",
		"redis_url", "redis://:hunter2@localhost:6379/0",
		"dsn", "postgres://u:p@db/x",
		"lock_token", "abc",
		"dangling",
	})
	assert.Equal(t, []interface{}{
		"student_id", "s1",
		"redis_url", "[REDACTED]",
		"dsn", "[REDACTED]",
		"lock_token", "[REDACTED]",
		"dangling",
	}, got)
}

func TestLoggerWritesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("student_id", "s1").Info("attempt recorded", "competence", "CP.MA.N1.4", "password", "x")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "attempt recorded", entries[0].Message)
		assert.Equal(t, "s1", ctx["student_id"])
		assert.Equal(t, "CP.MA.N1.4", ctx["competence"])
		assert.Equal(t, "[REDACTED]", ctx["password"])
	}
}

func TestNopAndNew(t *testing.T) {
	Nop().Info("discarded")

	l, err := New("prod")
	assert.NoError(t, err)
	assert.NotNil(t, l)
}
