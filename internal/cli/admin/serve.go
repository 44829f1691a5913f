package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/newsrag/internal/api/handlers"
	"github.com/cloo-solutions/newsrag/internal/cli"
	"github.com/cloo-solutions/newsrag/internal/api/middleware"
	"github.com/cloo-solutions/newsrag/internal/index"
	"github.com/cloo-solutions/newsrag/internal/jobs"
	"github.com/cloo-solutions/newsrag/internal/loader"
	"github.com/cloo-solutions/newsrag/internal/server"
	"github.com/cloo-solutions/newsrag/internal/service"
	"github.com/cloo-solutions/newsrag/internal/telemetry"
	"github.com/cloo-solutions/newsrag/internal/watcher"
	"github.com/spf13/cobra"
)

const reindexInterval = 5 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Build the index if it is missing, then serve questions and reports over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (default NEWSRAG_PORT)")
	cli.BindFlagEnv(cmd.Flags(), "port", "NEWSRAG_PORT")
	cmd.Flags().Bool("watch", false, "Rebuild the index when the source directory changes")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Debug:       cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
	} else {
		defer shutdownTelemetry()
	}

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	p, err := openPipeline(ctx, cfg, !noMigrate)
	if err != nil {
		return err
	}
	defer p.Close()

	store, built, err := p.builder.Open(ctx, cfg.SourceDir, p.location)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	if built {
		log.Printf("built index at %s (%d entries)", p.location, store.Len())
	} else {
		log.Printf("loaded index from %s (%d entries)", p.location, store.Len())
	}
	holder := index.NewHolder(store)

	templates, err := service.LoadReportTemplates(cfg.TemplatesFile)
	if err != nil {
		return err
	}
	reports := service.NewReportService(p.queryEngine(), holder, templates)

	var reindexWorker *jobs.Worker
	var sourceWatcher *watcher.Watcher
	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		sourceWatcher, err = watcher.New(loader.DefaultExtensions)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		events, err := sourceWatcher.Watch(ctx, cfg.SourceDir)
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", cfg.SourceDir, err)
		}

		processor := jobs.NewReindexProcessor(p.builder, holder, cfg.SourceDir, p.location)
		go processor.Follow(events)

		reindexWorker = jobs.NewWorker("reindex", processor, reindexInterval)
		go reindexWorker.Start(ctx)
		log.Printf("watching %s for changes", cfg.SourceDir)
	}

	routerCfg := server.RouterConfig{
		QueryHandler: handlers.NewQueryHandler(reports),
	}
	if cfg.APIToken != "" {
		routerCfg.AuthValidator = middleware.NewStaticTokenValidator(cfg.APIToken)
	} else {
		log.Println("NEWSRAG_API_TOKEN not set, API is unauthenticated")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}
	log.Println("shutting down...")

	if reindexWorker != nil {
		reindexWorker.Stop()
	}
	if sourceWatcher != nil {
		if err := sourceWatcher.Stop(); err != nil {
			log.Printf("failed to stop watcher: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}
