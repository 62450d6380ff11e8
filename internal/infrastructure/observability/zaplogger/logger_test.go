package zaplogger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Zhima-Mochi/sushistore/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrapCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core)).With(observability.F("service", "sushistore"))

	l.Info("use_case_done",
		observability.F("key", "sushi:1"),
		observability.F("error", errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "use_case_done", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "sushistore", fields["service"])
	assert.Equal(t, "sushi:1", fields["key"])
	assert.Equal(t, "boom", fields["error"])
}

func TestNewWithFileAndLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	l, err := New(Config{Level: "debug", File: path}, observability.F("env", "test"))
	require.NoError(t, err)
	l.Debug("hello")
	assert.FileExists(t, path)
	_ = Sync(l)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestOutputDefaultsToStderr(t *testing.T) {
	assert.Equal(t, []string{"stderr"}, Config{}.outputPaths())
	assert.Equal(t, []string{"stdout", "/tmp/app.log"}, Config{Output: "stdout", File: "/tmp/app.log"}.outputPaths())
	assert.Equal(t, []string{"/tmp/app.log"}, Config{Output: "/tmp/app.log", File: "/tmp/app.log"}.outputPaths())
}

func TestNewWritesToConfiguredOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l, err := New(Config{Output: path}, observability.F("env", "test"))
	require.NoError(t, err)
	l.Info("stock_loaded", observability.F("count", 3))
	require.NoError(t, Sync(l))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"stock_loaded"`)
	assert.Contains(t, string(raw), `"env":"test"`)
}
