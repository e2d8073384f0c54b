package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vango-dev/rxbind/internal/config"
	"github.com/vango-dev/rxbind/internal/errors"
	"github.com/vango-dev/rxbind/pkg/datasource"
	"github.com/vango-dev/rxbind/pkg/metrics"
	"github.com/vango-dev/rxbind/pkg/surface/live"
)

type benchConfig struct {
	Clients    int
	Duration   time.Duration
	Action     string
	JSONOutput string
}

type benchCounters struct {
	frames      atomic.Uint64
	frameBytes  atomic.Uint64
	errorFrames atomic.Uint64
}

type benchErrors struct {
	dialFailures   atomic.Uint64
	writeFailures  atomic.Uint64
	decodeFailures atomic.Uint64
	totalErrors    atomic.Uint64
}

type benchReport struct {
	Clients      int                `json:"clients"`
	Action       string             `json:"action"`
	DurationMS   int64              `json:"duration_ms"`
	ThrottleMS   int                `json:"throttle_ms"`
	Frames       uint64             `json:"frames"`
	FramesPerSec float64            `json:"frames_per_sec"`
	FrameBytes   uint64             `json:"frame_bytes"`
	ErrorFrames  uint64             `json:"error_frames"`
	Errors       uint64             `json:"errors"`
	GapMS        map[string]float64 `json:"frame_gap_ms"`
	NumGC        uint32             `json:"num_gc"`
	AllocMB      float64            `json:"alloc_mb"`
}

func benchCmd(flags *globalFlags) *cobra.Command {
	cfg := benchConfig{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Load the live server with WebSocket clients",
		Long: `Start an in-process live server, connect many clients, start generation
on each and measure the gap between frames each client receives. The gap
is bounded below by the render throttle window.

Examples:
  rxbind bench --clients=100 --duration=10s
  rxbind bench --action=start --json=report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Clients < 1 {
				return errors.New("R040").WithDetail("--clients must be at least 1")
			}
			if cfg.Action != live.ActionStart && cfg.Action != live.ActionStartInterval {
				return errors.New("R040").
					WithDetailf("unknown action %q", cfg.Action).
					WithSuggestion("Use --action=start or --action=start_interval")
			}

			appCfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := newLogger(appCfg, os.Stderr)

			report, err := runBench(cmd.Context(), appCfg, cfg, logger)
			if err != nil {
				return err
			}
			writeSummary(cmd.OutOrStdout(), report)
			if cfg.JSONOutput != "" {
				if err := writeJSON(cfg.JSONOutput, report); err != nil {
					return errors.New("R041").Wrap(err)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&cfg.Clients, "clients", "n", 10, "Concurrent WebSocket clients")
	cmd.Flags().DurationVarP(&cfg.Duration, "duration", "d", 5*time.Second, "How long clients stay connected")
	cmd.Flags().StringVar(&cfg.Action, "action", live.ActionStartInterval, "Action each client sends: start or start_interval")
	cmd.Flags().StringVar(&cfg.JSONOutput, "json", "", "Write a JSON report to this path (- for stdout)")

	return cmd
}

func runBench(ctx context.Context, appCfg *config.Config, cfg benchConfig, logger *slog.Logger) (benchReport, error) {
	srv := live.NewServer(live.Config{
		Factory:      datasource.NewFactory(datasource.WithConfig(appCfg.SourceConfig())),
		Throttle:     appCfg.Throttle(),
		MaxWait:      liveMaxWait(appCfg),
		Interval:     appCfg.SourceConfig().Period,
		QueueSize:    appCfg.Server.DispatchQueue,
		WriteTimeout: appCfg.WriteTimeout(),
		Logger:       logger,
		Metrics:      metrics.New(metrics.WithNamespace(appCfg.Metrics.Namespace)),
	})
	defer srv.Close()

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return benchReport{}, errors.New("R041").Wrap(err)
	}
	httpServer := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		_ = httpServer.Serve(ln)
	}()
	defer func() {
		_ = httpServer.Shutdown(context.Background())
	}()

	wsURL := "ws://" + ln.Addr().String() + "/ws"

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var counters benchCounters
	var errCounts benchErrors
	tach := tachymeter.New(&tachymeter.Config{Size: 8192})

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(cfg.Clients)
	for i := 0; i < cfg.Clients; i++ {
		go func() {
			defer wg.Done()
			if err := runClient(ctx, wsURL, cfg.Action, &counters, &errCounts, tach); err != nil {
				errCounts.totalErrors.Add(1)
				logger.Debug("bench client failed", "error", err)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	var after runtime.MemStats
	runtime.ReadMemStats(&after)

	report := benchReport{
		Clients:     cfg.Clients,
		Action:      cfg.Action,
		DurationMS:  elapsed.Milliseconds(),
		ThrottleMS:  appCfg.ThrottleMS,
		Frames:      counters.frames.Load(),
		FrameBytes:  counters.frameBytes.Load(),
		ErrorFrames: counters.errorFrames.Load(),
		Errors:      errCounts.totalErrors.Load(),
		NumGC:       after.NumGC - before.NumGC,
		AllocMB:     float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
	}
	if elapsed > 0 {
		report.FramesPerSec = float64(report.Frames) / elapsed.Seconds()
	}
	if report.Frames > uint64(cfg.Clients) {
		calc := tach.Calc()
		report.GapMS = map[string]float64{
			"min": ms(calc.Time.Min),
			"avg": ms(calc.Time.Avg),
			"p50": ms(calc.Time.P50),
			"p99": ms(calc.Time.P99),
			"max": ms(calc.Time.Max),
		}
	}
	return report, nil
}

// runClient connects, sends action and reads frames until ctx is done.
// Every gap between two consecutive frames is recorded.
func runClient(
	ctx context.Context,
	wsURL string,
	action string,
	counters *benchCounters,
	errCounts *benchErrors,
	gaps *tachymeter.Tachymeter,
) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		errCounts.dialFailures.Add(1)
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the run ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(live.Request{Action: action}); err != nil {
		errCounts.writeFailures.Add(1)
		return fmt.Errorf("write: %w", err)
	}

	var last time.Time
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		now := time.Now()

		var frame live.Frame
		if err := json.Unmarshal(msg, &frame); err != nil {
			errCounts.decodeFailures.Add(1)
			continue
		}
		if frame.Type == live.TypeError {
			counters.errorFrames.Add(1)
			continue
		}

		counters.frames.Add(1)
		counters.frameBytes.Add(uint64(len(msg)))
		if !last.IsZero() {
			gaps.AddTime(now.Sub(last))
		}
		last = now
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func writeSummary(w io.Writer, report benchReport) {
	tbl := table.NewWriter()
	tbl.SetTitle("rxbind live benchmark")
	tbl.SetOutputMirror(w)
	tbl.AppendRows([]table.Row{
		{"clients", humanize.Comma(int64(report.Clients))},
		{"action", report.Action},
		{"duration", (time.Duration(report.DurationMS) * time.Millisecond).String()},
		{"throttle", (time.Duration(report.ThrottleMS) * time.Millisecond).String()},
		{"frames", humanize.Comma(int64(report.Frames))},
		{"frames/s", fmt.Sprintf("%.1f", report.FramesPerSec)},
		{"frame bytes", humanize.Bytes(report.FrameBytes)},
		{"error frames", humanize.Comma(int64(report.ErrorFrames))},
		{"errors", humanize.Comma(int64(report.Errors))},
		{"gc runs", report.NumGC},
		{"allocated", fmt.Sprintf("%.2f MB", report.AllocMB)},
	})
	if report.GapMS == nil {
		tbl.AppendRow(table.Row{"frame gap", "no samples"})
	} else {
		for _, k := range []string{"min", "avg", "p50", "p99", "max"} {
			tbl.AppendRow(table.Row{"frame gap " + k, fmt.Sprintf("%.2f ms", report.GapMS[k])})
		}
	}
	tbl.Render()
}

func writeJSON(path string, report benchReport) error {
	var out io.Writer
	if path == "-" {
		out = os.Stdout
	} else {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
