package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/rxbind/internal/config"
	"github.com/vango-dev/rxbind/internal/errors"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunDemoRejectsUnknownMode(t *testing.T) {
	_, err := runDemo(context.Background(), io.Discard, config.New(), demoOptions{mode: "sideways"}, quietLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "R040"))
}

func TestRunDemo(t *testing.T) {
	for _, mode := range []string{modeTriggered, modeInterval} {
		t.Run(mode, func(t *testing.T) {
			cfg := config.New()
			cfg.ThrottleMS = 10

			// Longer than the default max wait, so a triggered run that
			// never goes quiet still renders while it is running.
			ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
			defer cancel()

			var out bytes.Buffer
			stats, err := runDemo(ctx, &out, cfg, demoOptions{mode: mode, maxItems: 4}, quietLogger())
			require.NoError(t, err)

			assert.Positive(t, stats.renders)
			assert.Positive(t, stats.batches)
			assert.Positive(t, stats.signals)
			assert.Contains(t, out.String(), "frame 1")
		})
	}
}

func TestLiveMaxWait(t *testing.T) {
	cfg := config.New()
	assert.Equal(t, 250*time.Millisecond, liveMaxWait(cfg))

	zero := 0
	cfg.MaxWaitMS = &zero
	assert.Negative(t, liveMaxWait(cfg), "an explicit zero disables the bound")
}

func TestRunDemoQuiet(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	cfg := config.New()
	cfg.ThrottleMS = 5
	stats, err := runDemo(ctx, &out, cfg, demoOptions{mode: modeInterval, quiet: true}, quietLogger())
	require.NoError(t, err)
	assert.Empty(t, out.String())

	printStats(&out, stats)
	assert.Contains(t, strings.ToLower(out.String()), "render latency")
}
