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

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/ygo-judge/internal/config"
	"github.com/MimeLyc/ygo-judge/internal/httpapi"
	"github.com/MimeLyc/ygo-judge/internal/ingest"
	"github.com/MimeLyc/ygo-judge/internal/metrics"
	"github.com/MimeLyc/ygo-judge/pkg/icron"
	"github.com/MimeLyc/ygo-judge/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the judge over HTTP with streamed inquiries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				c.cfg.HTTP.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c.cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	collector := metrics.New()

	b, err := buildBackends(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer b.Close()

	srv := httpapi.NewServer(b.store, b.judge,
		httpapi.WithHealthChecker(b.store),
		httpapi.WithMetrics(collector.Handler()),
		httpapi.WithAllowedOrigin(cfg.HTTP.AllowedOrigin),
		httpapi.WithUI(cfg.HTTP.UIDir, cfg.HTTP.UIDir != ""),
	)

	engine := cron.New(cron.WithParser(icron.Parser))
	var sched scheduler
	if cfg.Catalog.RefreshCron != "" {
		fetcher := ingest.NewCatalogFetcher(cfg.Catalog.URL, time.Minute)
		sched = ingest.NewScheduler(engine, cfg.Catalog.RefreshCron,
			func(ctx context.Context) error {
				n, err := ingest.ImportCatalog(ctx, fetcher, b.store)
				if err != nil {
					return err
				}
				log.Info("Imported %d cards from the catalog", n)
				return nil
			},
			ingest.WithAfterRefresh(b.searcher.Refresh),
		)
	}

	return runWithComponents(ctx, cfg, sched, engine, srv)
}

// runWithComponents starts the cron and the HTTP server and stops both when
// ctx is cancelled or the server fails. A nil scheduler leaves the cron idle.
func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, engine cronEngine, srv httpServer) error {
	if sched != nil {
		if err := sched.Schedule(ctx); err != nil {
			return fmt.Errorf("schedule catalog refresh: %w", err)
		}
	}
	engine.Start()
	defer func() {
		<-engine.Stop().Done()
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
