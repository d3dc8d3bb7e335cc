package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/feeder/config"
)

var lineRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3} - INFO - fed piorun attempt=3 url="https://x/y z"$`)

func TestLineHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewLineHandler(&buf, nil))

	logger.Info("fed piorun", "attempt", 3, "url", "https://x/y z")

	assert.Regexp(t, lineRe, strings.TrimSuffix(buf.String(), "\n"))
}

func TestLineHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewLineHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Warn("shown")

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), " - WARN - shown")
}

func TestLineHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewLineHandler(&buf, nil)).With("target", "azorek").WithGroup("tally")

	logger.Info("done", "ok", 2)

	assert.Contains(t, buf.String(), "done target=azorek tally.ok=2")
}

func TestLineHandler_ConcurrentWritesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewLineHandler(&buf, nil))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.Info("attempt", "worker", n)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 400)
	for _, l := range lines {
		assert.Contains(t, l, " - INFO - attempt worker=")
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestSetup_WritesTimestampedFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := t.TempDir()
	stamp := time.Date(2026, 10, 16, 9, 5, 7, 0, time.UTC)

	closer, path, err := Setup(config.LogConfig{
		Level:      "info",
		Format:     "line",
		File:       true,
		Dir:        dir,
		FilePrefix: "dog_feeding",
	}, stamp)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "dog_feeding_20261016_090507.log"), path)

	slog.Info("Starting dog feeding process")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), " - INFO - Starting dog feeding process")
}

func TestSetup_ConsoleOnly(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	closer, path, err := Setup(config.LogConfig{Format: "json"}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.NoError(t, closer.Close())
}
