package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newServerCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newServerCmd() *cobra.Command {
	var (
		addr     string
		interval time.Duration
		chunks   int
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "mm1server",
		Short: "Streams M/M/1 simulations over WebSocket and exports Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logrus.New()
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
			return serve(cmd.Context(), log, addr, interval, chunks)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "Wall time between progress updates")
	cmd.Flags().IntVar(&chunks, "chunks", 100, "Progress updates per run")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every client command")
	return cmd
}

func serve(ctx context.Context, log *logrus.Logger, addr string, interval time.Duration, chunks int) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := newServer(log, reg, interval, chunks)
	httpServer := &http.Server{Addr: addr}
	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Error during shutdown")
		}
	}
	httpServer.Handler = srv.routes(reg, shutdown)

	go func() {
		<-ctx.Done()
		shutdown()
	}()

	log.Infof("Server starting on http://localhost%s", addr)
	log.Infof("WebSocket endpoint: ws://localhost%s/ws", addr)
	log.Infof("Metrics endpoint: http://localhost%s/metrics", addr)
	log.Infof("Shutdown endpoint: http://localhost%s/quitquitquit", addr)

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("Server failed")
		return err
	}
	log.Info("Server stopped")
	return nil
}
