package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vango-dev/rxbind/internal/config"
	"github.com/vango-dev/rxbind/internal/errors"
	"github.com/vango-dev/rxbind/pkg/binding"
	"github.com/vango-dev/rxbind/pkg/datasource"
	"github.com/vango-dev/rxbind/pkg/dispatch"
	"github.com/vango-dev/rxbind/pkg/metrics"
	"github.com/vango-dev/rxbind/pkg/surface"
	"github.com/vango-dev/rxbind/pkg/surface/term"
	"github.com/vango-dev/rxbind/pkg/viewmodel"
)

const (
	modeTriggered = "triggered"
	modeInterval  = "interval"
)

type demoOptions struct {
	mode     string
	duration time.Duration
	quiet    bool
	maxItems int
}

type demoStats struct {
	renders  uint64
	batches  uint64
	signals  float64
	duration time.Duration
	calc     *tachymeter.Metrics
}

func demoCmd(flags *globalFlags) *cobra.Command {
	opts := demoOptions{}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Render a generating view-model to the terminal",
		Long: `Run one view-model for a fixed time, rendering each throttled frame
as a table, then print render latency statistics.

Examples:
  rxbind demo
  rxbind demo --mode=interval --duration=5s --quiet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stderr)

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.duration)
			defer cancel()

			stats, err := runDemo(ctx, cmd.OutOrStdout(), cfg, opts, logger)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", modeTriggered, "Generation mode: triggered or interval")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 2*time.Second, "How long to run")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Only print the summary")
	cmd.Flags().IntVar(&opts.maxItems, "max-items", term.DefaultMaxItems, "Values listed per frame")

	return cmd
}

// runDemo drives one view-model until ctx is done.
func runDemo(ctx context.Context, out io.Writer, cfg *config.Config, opts demoOptions, logger *slog.Logger) (demoStats, error) {
	if opts.mode != modeTriggered && opts.mode != modeInterval {
		return demoStats{}, errors.New("R040").
			WithDetailf("unknown mode %q", opts.mode).
			WithSuggestion("Use --mode=triggered or --mode=interval")
	}

	m := metrics.New(metrics.WithNamespace(cfg.Metrics.Namespace))
	loop := dispatch.NewLoop(
		dispatch.WithQueueSize(cfg.Server.DispatchQueue),
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(m))
	defer loop.Close()

	vm := viewmodel.New(
		datasource.NewFactory(
			datasource.WithConfig(cfg.SourceConfig()),
			datasource.WithLogger(logger)),
		viewmodel.WithLogger(logger),
		viewmodel.WithMetrics(m),
		viewmodel.WithInterval(cfg.SourceConfig().Period))
	defer vm.Dispose()

	tach := tachymeter.New(&tachymeter.Config{Size: 1024})
	frames := out
	if opts.quiet {
		frames = io.Discard
	}

	var b *binding.Binding[*viewmodel.ViewModel]
	s := term.New(frames, loop,
		func() surface.Snapshot { return surface.Take(b.ViewModel(), b.Renders()) },
		term.WithMaxItems(opts.maxItems),
		term.WithTitle("rxbind "+opts.mode),
		term.WithRenderHook(tach.AddTime),
		term.WithFirstPaint(func() { b.FirstPaintComplete() }))
	b = binding.New[*viewmodel.ViewModel](s,
		binding.WithThrottle(cfg.Throttle()),
		binding.WithMaxWait(cfg.MaxWait()),
		binding.WithLogger(logger),
		binding.WithMetrics(m))
	defer b.Dispose()

	b.OnFirstPaint(func() { b.AddSource(vm.Numbers().Changed()) })
	b.SetViewModel(vm)

	start := time.Now()
	var err error
	if opts.mode == modeInterval {
		err = vm.StartObservable()
	} else {
		err = vm.Start()
	}
	if err != nil {
		return demoStats{}, errors.Classify(err, "R010")
	}

	<-ctx.Done()

	if opts.mode == modeInterval {
		err = vm.CancelObservable()
	} else {
		err = vm.Cancel()
	}
	if err != nil {
		return demoStats{}, errors.Classify(err, "R010")
	}

	elapsed := time.Since(start)
	b.Dispose()

	// Wait for a render already on the loop.
	syncCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := loop.Sync(syncCtx, func() {}); err != nil {
		logger.Warn("demo loop did not settle", "error", err)
	}

	calc := &tachymeter.Metrics{}
	if b.Renders() > 0 {
		calc = tach.Calc()
	}

	return demoStats{
		renders:  b.Renders(),
		batches:  vm.NumbersChanged(),
		signals:  dirtySignals(m, cfg.Metrics.Namespace),
		duration: elapsed,
		calc:     calc,
	}, nil
}

func dirtySignals(m *metrics.Metrics, namespace string) float64 {
	families, err := m.Registry().Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		if mf.GetName() == namespace+"_dirty_signals_total" && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func printStats(w io.Writer, stats demoStats) {
	tbl := table.NewWriter()
	tbl.SetTitle("render latency")
	tbl.SetOutputMirror(w)
	tbl.AppendHeader(table.Row{"renders", "batches", "signals", "elapsed", "avg", "min", "p75", "p99", "max"})
	tbl.AppendRow(table.Row{
		humanize.Comma(int64(stats.renders)),
		humanize.Comma(int64(stats.batches)),
		humanize.Comma(int64(stats.signals)),
		stats.duration.Round(time.Millisecond),
		stats.calc.Time.Avg,
		stats.calc.Time.Min,
		stats.calc.Time.P75,
		stats.calc.Time.P99,
		stats.calc.Time.Max,
	})
	tbl.Render()

	if stats.renders > 0 && stats.batches > 0 {
		fmt.Fprintf(w, "%s batches coalesced into %s renders\n",
			humanize.Comma(int64(stats.batches)), humanize.Comma(int64(stats.renders)))
	}
}
