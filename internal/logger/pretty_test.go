package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFormatMessage(t *testing.T) {
	sig := "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"

	msg := FormatMessage("Transaction confirmed", []zapcore.Field{zap.String("signature", sig)})
	assert.Contains(t, msg, "5VERv8NM...diSZkQUW")

	msg = FormatMessage("Transaction not confirmed yet, resending", []zapcore.Field{
		zap.Duration("elapsed", 10*time.Second),
		zap.Int("resend", 2),
	})
	assert.Contains(t, msg, "10s")
	assert.Contains(t, msg, "#2")

	assert.Equal(t, "something else", FormatMessage("something else", nil))
}

func TestFieldFilterCoreFoldsFields(t *testing.T) {
	inner, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(&FieldFilterCore{core: inner}).With(zap.String("signature", "1234567890abcdefghij"))

	log.Info("Transaction submitted", zap.Int("extra", 1))
	log.Debug("Transaction submitted")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Contains(t, entries[0].Message, "12345678...cdefghij")
		assert.Empty(t, entries[0].Context)
	}
}

func TestWithOperationAddsCorrelationID(t *testing.T) {
	inner, logs := observer.New(zapcore.InfoLevel)
	log := WithOperation(zap.New(inner), "sign_and_send")
	log.Info("x")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "sign_and_send", fields["operation"])
	assert.NotEmpty(t, fields["correlation_id"])
}
