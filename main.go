package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/pkg/config"
	"github.com/taskhive/taskhive/pkg/database"
	"github.com/taskhive/taskhive/pkg/logging"
	"github.com/taskhive/taskhive/pkg/mcp"
	"github.com/taskhive/taskhive/pkg/mcp/tools"
	"github.com/taskhive/taskhive/pkg/repositories"
	"github.com/taskhive/taskhive/pkg/services"
	"github.com/taskhive/taskhive/pkg/workflow"
)

// Version is set at build time via ldflags.
var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "taskhive",
		Short:        "Task orchestration MCP server",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config.yaml")

	rootCmd.AddCommand(serveCmd(), migrateCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("taskhive version %s\n", Version)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, Version)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, false)
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()
			db, err := database.Open(ctx, &database.Config{
				Path:          cfg.Database.Path,
				BusyTimeoutMS: cfg.Database.BusyTimeoutMS,
				MaxOpenConns:  cfg.Database.MaxOpenConns,
			})
			if err != nil {
				return err
			}
			defer db.Close()

			return db.Migrate(ctx, logger)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, Version)
			if err != nil {
				return err
			}

			// On stdio transport stdout carries protocol frames, so the
			// logger must stay off it.
			logger := newLogger(cfg, cfg.Server.Transport == "stdio")
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}
}

func newLogger(cfg *config.Config, stderrOnly bool) *zap.Logger {
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
		StderrOnly:  stderrOnly,
	})
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting taskhive",
		zap.String("version", cfg.Version),
		zap.String("transport", cfg.Server.Transport),
		zap.String("database", cfg.Database.Path))

	db, err := database.Open(ctx, &database.Config{
		Path:          cfg.Database.Path,
		BusyTimeoutMS: cfg.Database.BusyTimeoutMS,
		MaxOpenConns:  cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx, logger); err != nil {
		return err
	}

	wf, err := workflow.NewStore(cfg.Workflow.Path, cfg.Workflow.AgentMappingPath, logger)
	if err != nil {
		return err
	}
	if cfg.Workflow.Watch {
		if err := wf.Watch(ctx); err != nil {
			logger.Warn("Workflow hot reload unavailable", zap.Error(err))
		}
	}

	// Repositories.
	tagRepo := repositories.NewTagRepository(db)
	projectRepo := repositories.NewProjectRepository(db, tagRepo)
	featureRepo := repositories.NewFeatureRepository(db, tagRepo)
	taskRepo := repositories.NewTaskRepository(db, tagRepo)
	sectionRepo := repositories.NewSectionRepository(db)
	depRepo := repositories.NewDependencyRepository(db)
	eventRepo := repositories.NewRoleTransitionRepository(db)

	// Services.
	cascadeSvc := services.NewCompletionCascadeService(db, taskRepo, sectionRepo, depRepo, eventRepo, wf, logger)
	entitySvc := services.NewEntityService(db, projectRepo, featureRepo, taskRepo, sectionRepo, depRepo, eventRepo, wf, logger)
	querySvc := services.NewContainerQueryService(projectRepo, featureRepo, taskRepo, sectionRepo, wf, logger)
	sectionSvc := services.NewSectionService(sectionRepo, logger)
	depSvc := services.NewDependencyService(db, depRepo, logger)
	progressionSvc := services.NewStatusProgressionService(db, projectRepo, featureRepo, taskRepo, eventRepo, cascadeSvc, wf, logger)
	recommendationSvc := services.NewRecommendationService(taskRepo, depRepo, wf, logger)

	// MCP server and tools.
	srv := mcp.NewServer("taskhive", cfg.Version, logger)
	tools.RegisterEntityTools(srv.MCP(), &tools.EntityToolDeps{Entities: entitySvc, Logger: logger})
	tools.RegisterQueryTools(srv.MCP(), &tools.QueryToolDeps{Query: querySvc, Logger: logger})
	tools.RegisterSectionTools(srv.MCP(), &tools.SectionToolDeps{Sections: sectionSvc, Logger: logger})
	tools.RegisterDependencyTools(srv.MCP(), &tools.DependencyToolDeps{Dependencies: depSvc, Logger: logger})
	tools.RegisterSchedulingTools(srv.MCP(), &tools.SchedulingToolDeps{Recommendation: recommendationSvc, Logger: logger})
	tools.RegisterTransitionTools(srv.MCP(), &tools.TransitionToolDeps{Progression: progressionSvc, Logger: logger})

	switch cfg.Server.Transport {
	case "stdio":
		return serveStdio(ctx, srv, logger)
	case "http":
		return serveHTTP(ctx, cfg, srv, db, logger)
	}
	return fmt.Errorf("unsupported transport %q", cfg.Server.Transport)
}

func serveStdio(ctx context.Context, srv *mcp.Server, logger *zap.Logger) error {
	logger.Info("Serving MCP over stdio")
	stdio := srv.NewStdioServer()
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func serveHTTP(ctx context.Context, cfg *config.Config, srv *mcp.Server, db *database.DB, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", srv.NewStreamableHTTPServer())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	addr := cfg.Server.BindAddr + ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving MCP over HTTP", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("Shutting down")
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
