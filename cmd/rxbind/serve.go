package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/rxbind/internal/errors"
	"github.com/vango-dev/rxbind/pkg/datasource"
	"github.com/vango-dev/rxbind/pkg/metrics"
	"github.com/vango-dev/rxbind/pkg/surface/live"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		addr     string
		throttle time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve view-models over WebSocket",
		Long: `Serve one view-model per WebSocket connection.

Routes:
  /ws       WebSocket; send {"action":"start"} and receive frames
  /healthz  liveness and session count
  /metrics  Prometheus metrics

Examples:
  rxbind serve
  rxbind serve --addr=127.0.0.1:9000 --throttle=100ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if throttle < 0 {
				return errors.New("R040").WithDetail("--throttle must not be negative")
			}

			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			if throttle > 0 {
				cfg.ThrottleMS = int(throttle / time.Millisecond)
			}

			logger := newLogger(cfg, os.Stderr)
			m := metrics.New(metrics.WithNamespace(cfg.Metrics.Namespace))

			srv := live.NewServer(live.Config{
				Factory: datasource.NewFactory(
					datasource.WithConfig(cfg.SourceConfig()),
					datasource.WithLogger(logger)),
				Throttle:        cfg.Throttle(),
				MaxWait:         liveMaxWait(cfg),
				Interval:        cfg.SourceConfig().Period,
				QueueSize:       cfg.Server.DispatchQueue,
				ReadBufferSize:  cfg.Server.ReadBuffer,
				WriteBufferSize: cfg.Server.WriteBuffer,
				WriteTimeout:    cfg.WriteTimeout(),
				Logger:          logger,
				Metrics:         m,
			})
			defer srv.Close()

			httpSrv := &http.Server{
				Addr:              cfg.Server.Address,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", cfg.Server.Address, "throttle", cfg.Throttle())
				serveErr <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-serveErr:
				return errors.New("R041").Wrap(err)
			case <-ctx.Done():
			}

			logger.Info("shutting down", "sessions", srv.SessionCount())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Close()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				return errors.New("R041").Wrap(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")
	cmd.Flags().DurationVar(&throttle, "throttle", 0, "Render throttle window (default from config)")

	return cmd
}
