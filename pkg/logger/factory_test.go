package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/logger"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestNew_JSONOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithAttr(slog.String("service", "entitlekit")),
	)

	log.Info("webhook accepted", logger.EventID("evt_1"))

	m := logLine(t, &buf)
	assert.Equal(t, "webhook accepted", m["msg"])
	assert.Equal(t, "entitlekit", m["service"])
	assert.Equal(t, "evt_1", m["event_id"])
}

func TestNew_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))

	log.Info("below threshold")
	assert.Zero(t, buf.Len())

	log.Warn("at threshold")
	assert.NotZero(t, buf.Len())
}

func TestNew_ContextValueExtraction(t *testing.T) {
	t.Parallel()

	type ctxKey struct{}

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithContextValue("request_id", ctxKey{}),
	)

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-42")
	log.InfoContext(ctx, "handled")

	m := logLine(t, &buf)
	assert.Equal(t, "req-42", m["request_id"])
}

func TestNew_ContextValueAbsent(t *testing.T) {
	t.Parallel()

	type ctxKey struct{}

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithContextValue("request_id", ctxKey{}),
	)

	log.InfoContext(context.Background(), "handled")

	m := logLine(t, &buf)
	_, present := m["request_id"]
	assert.False(t, present, "absent context values add no attribute")
}

func TestWithEnvironment_Presets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithEnvironment("production", "entitlekit"),
		logger.WithOutput(&buf),
	)

	log.Info("up")

	m := logLine(t, &buf)
	assert.Equal(t, "entitlekit", m["service"])
	assert.Equal(t, "production", m["env"])
}

func TestWithFormat_PanicsOnUnknown(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		logger.New(logger.WithFormat("yaml"))
	})
}

func TestAttr_NilValuesProduceEmptyAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Error(nil))
	assert.Equal(t, slog.Attr{}, logger.Errors(nil, nil))
	assert.Equal(t, slog.Attr{}, logger.UserID(nil))
	assert.Equal(t, slog.Attr{}, logger.RequestID(nil))
}

func TestAttr_Errors(t *testing.T) {
	t.Parallel()

	attr := logger.Errors(errors.New("first"), nil, errors.New("third"))
	require.Equal(t, "errors", attr.Key)
	assert.Len(t, attr.Value.Group(), 2)
}
