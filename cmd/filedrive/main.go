package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/filedrive/internal/config"
	"github.com/alexjbarnes/filedrive/internal/drive"
	"github.com/alexjbarnes/filedrive/internal/importer"
	"github.com/alexjbarnes/filedrive/internal/logging"
	"github.com/alexjbarnes/filedrive/internal/metrics"
	"github.com/alexjbarnes/filedrive/internal/prefs"
	"github.com/alexjbarnes/filedrive/internal/server"
	"github.com/alexjbarnes/filedrive/internal/store"
	"github.com/alexjbarnes/filedrive/internal/view"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("filedrive starting",
		slog.String("version", Version),
		slog.String("store", cfg.StoreBaseURL),
		slog.String("listen", cfg.ListenAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prefsPath := cfg.PrefsDBPath
	if prefsPath == "" {
		prefsPath, err = config.DefaultPrefsPath()
		if err != nil {
			return fmt.Errorf("resolving prefs path: %w", err)
		}
	}

	prefStore, err := prefs.Open(prefsPath)
	if err != nil {
		return fmt.Errorf("opening prefs store: %w", err)
	}
	defer prefStore.Close()

	vs := view.NewState()
	vs.SetMode(view.ParseMode(prefStore.ViewMode()))
	vs.SetSortAscending(prefStore.SortAscending())

	var overrides map[string]string

	if cfg.MIMEOverridesFile != "" {
		overrides, err = drive.LoadMIMEOverrides(cfg.MIMEOverridesFile)
		if err != nil {
			return fmt.Errorf("loading MIME overrides: %w", err)
		}

		logger.Info("MIME overrides loaded",
			slog.String("file", cfg.MIMEOverridesFile),
			slog.Int("entries", len(overrides)),
		)
	}

	client := store.NewClient(cfg.StoreBaseURL, &http.Client{Timeout: cfg.StoreTimeout()})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := drive.New(client, vs, drive.NewMIMEResolver(overrides), logger, metrics.New(reg))

	// Populate the view before serving. Failure is non-fatal: the store
	// may still be coming up, and every mutation or refresh retries the
	// rebuild.
	if _, err := svc.FetchAll(ctx); err != nil {
		logger.Warn("initial fetch failed, serving empty view", slog.String("error", err.Error()))
	}

	mux := server.NewMux(server.MuxConfig{
		Service:        svc,
		View:           vs,
		Prefs:          prefStore,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:         logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runServer(gctx, cfg.ListenAddr, mux, logger)
	})

	if cfg.ImportDir != "" {
		im := importer.New(cfg.ImportDir, svc, logger)

		g.Go(func() error {
			return im.Watch(gctx)
		})
	}

	return g.Wait()
}

func runServer(ctx context.Context, addr string, mux *http.ServeMux, logger *slog.Logger) error {
	// No WriteTimeout: /ws connections are long-lived.
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// Shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", slog.String("addr", addr))

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}
