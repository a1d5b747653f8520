package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	root := t.TempDir()
	t.Setenv("WHITELISTER_ROOT", root)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, ".csv", cfg.Extension)
	assert.Equal(t, "STUDENT NUMBER", cfg.IDColumn)
	assert.Equal(t, "ENROLMENT DATE", cfg.DateColumn)
	assert.Equal(t, "2.1.2006 15.4.5", cfg.DateLayout)
	assert.Equal(t, 16*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, filepath.Join(root, "data"), cfg.DataDir())
	assert.Equal(t, filepath.Join(root, "logs"), cfg.LogsDir())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := "root: " + dir + "\npoll_interval: 50ms\nlog_level: debug\nid_column: ID\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("WHITELISTER_CONFIG", path)
	t.Setenv("WHITELISTER_ID_COLUMN", "STUDENT ID")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Root)
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "STUDENT ID", cfg.IDColumn, "env overrides file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{name: "bad extension", key: "WHITELISTER_EXTENSION", val: "csv", want: "Extension"},
		{name: "same columns", key: "WHITELISTER_DATE_COLUMN", val: "STUDENT NUMBER", want: "DateColumn"},
		{name: "zero poll", key: "WHITELISTER_POLL_INTERVAL", val: "0s", want: "PollInterval"},
		{name: "unparsable poll", key: "WHITELISTER_POLL_INTERVAL", val: "soon", want: "WHITELISTER_POLL_INTERVAL"},
		{name: "bad level", key: "WHITELISTER_LOG_LEVEL", val: "LOUD", want: "LogLevelName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WHITELISTER_ROOT", t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBootstrap(t *testing.T) {
	cfg := Defaults()
	cfg.Root = filepath.Join(t.TempDir(), "nested", AppName)

	require.NoError(t, Bootstrap(cfg))

	for _, dir := range []string{cfg.Root, cfg.DataDir(), cfg.LogsDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir(), dir)
	}
}

func TestBootstrap_RootIsFile(t *testing.T) {
	cfg := Defaults()
	cfg.Root = filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(cfg.Root, nil, 0o644))

	assert.Error(t, Bootstrap(cfg))
}

func TestLogBuffer_KeepsNewest(t *testing.T) {
	buf := NewLogBuffer(2)
	_, _ = buf.Write([]byte("one\ntwo\nthr"))
	_, _ = buf.Write([]byte("ee\n"))

	assert.Equal(t, []string{"two", "three"}, buf.Lines())
	assert.Equal(t, []string{"three"}, buf.Tail(1))
}

func TestLogBuffer_ZeroKeepsNothing(t *testing.T) {
	buf := NewLogBuffer(0)
	_, _ = buf.Write([]byte("line\n"))
	assert.Empty(t, buf.Lines())
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var console, file bytes.Buffer
	buf := NewLogBuffer(10)

	logger := SetupLoggerWithWriters(&console, &file, buf, slog.LevelInfo)
	logger.Info("file selected", "path", "a.csv")
	logger.Debug("hidden")

	assert.Contains(t, console.String(), "file selected")
	assert.Contains(t, file.String(), `"msg":"file selected"`)
	require.Len(t, buf.Lines(), 1)
	assert.True(t, strings.HasPrefix(buf.Lines()[0], "level=INFO"), buf.Lines()[0])
	assert.NotContains(t, buf.Lines()[0], "time=")
}

func TestSetupLogger_WritesRunLog(t *testing.T) {
	dir := t.TempDir()
	buf := NewLogBuffer(10)

	logger, path, cleanup := SetupLogger(dir, slog.LevelInfo, nil, buf)
	logger.Info("started")
	require.NoError(t, cleanup())

	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "app_"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"started"`)
	assert.Len(t, buf.Lines(), 1)
}

func TestLogFileName(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "app_20240305_143000.log", LogFileName(ts))
}
