package telemetry_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/omochice/stranger-chat/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Fallback(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := telemetry.NewLogger("", &buf, slog.LevelWarn)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("stale room message discarded", "room", "room1")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "room=room1")
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	logger, closer := telemetry.NewLogger(path, nil, slog.LevelInfo)

	logger.Info("connected to matching service", "endpoint", "ws://localhost:3000/ws")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"endpoint":"ws://localhost:3000/ws"`))
}

func TestInitMetrics_ExportsToFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "metrics.log")

	mp, shutdown, err := telemetry.InitMetrics(ctx, "stranger-test", path, time.Hour)
	require.NoError(t, err)

	counter, err := mp.Meter("test").Int64Counter("chat.messages.appended")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	require.NoError(t, shutdown(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chat.messages.appended")
}

func TestInitMetrics_Disabled(t *testing.T) {
	mp, shutdown, err := telemetry.InitMetrics(context.Background(), "stranger-test", "", time.Second)
	require.NoError(t, err)
	require.NotNil(t, mp)
	assert.NoError(t, shutdown(context.Background()))
}
