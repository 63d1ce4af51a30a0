package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alienxp03/botdebate/internal/debate"
	"github.com/alienxp03/botdebate/internal/metrics"
	"github.com/alienxp03/botdebate/internal/storage"
	"github.com/alienxp03/botdebate/web/handlers"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr string
	serveMock bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the debate HTTP API",
	RunE:  serve,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (default: from config)")
	serveCmd.Flags().BoolVar(&serveMock, "mock", false, "Use scripted replies instead of the bot endpoints")
}

func serve(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()
	if serveAddr != "" {
		a.cfg.Server.Addr = serveAddr
	}

	store, err := a.openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	m, err := a.newManager(a.completer(serveMock),
		debate.WithRecorder(storage.NewRecorder(store)),
		debate.WithMetrics(collector),
	)
	if err != nil {
		return err
	}

	h := handlers.New(m, handlers.Options{
		Storage:         store,
		Health:          a.client(),
		Metrics:         collector,
		Gatherer:        reg,
		HealthCachePath: handlers.DefaultHealthCachePath(),
		Logger:          a.logger,
	})
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("starting botdebate server", zap.String("url", fmt.Sprintf("http://localhost%s", srv.Addr)))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
