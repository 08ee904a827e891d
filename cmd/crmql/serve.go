package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rpattn/crmql/internal/config"
	"github.com/rpattn/crmql/internal/crm"
	"github.com/rpattn/crmql/internal/db"
	"github.com/rpattn/crmql/internal/export"
	"github.com/rpattn/crmql/internal/graphql"
	"github.com/rpattn/crmql/internal/ingestion"
	"github.com/rpattn/crmql/internal/middleware"
	"github.com/rpattn/crmql/internal/repository"
	"github.com/rpattn/crmql/internal/rest"
	"github.com/rpattn/crmql/migrations"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func serveCmd(a *app) *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the GraphQL and REST API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), a, skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on startup")
	return cmd
}

func serve(ctx context.Context, a *app, skipMigrations bool) error {
	logger := a.logger

	conn, err := db.NewConnection(ctx, a.cfg.Database, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !skipMigrations {
		if err := db.RunMigrations(a.cfg.Database, migrations.FS, db.Up, logger); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler, err := newHTTPHandler(repository.NewStore(conn), a.cfg.Server, logger, reg)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server",
			zap.String("addr", server.Addr),
			zap.String("graphql", "/query"),
			zap.String("playground", "/"),
			zap.String("rest", "/api"))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}

// newHTTPHandler builds the full route tree:
//
//	/          GraphQL playground
//	/query     GraphQL endpoint
//	/api/...   REST listings, export and import
//	/metrics   Prometheus metrics
func newHTTPHandler(store repository.Store, cfg config.ServerConfig, logger *zap.Logger, reg *prometheus.Registry) (http.Handler, error) {
	svc := crm.NewService(store, logger, reg)

	metrics, err := middleware.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(logger), metrics.Middleware, middleware.DataLoaderMiddleware(store))

	router.Handle("/query", graphql.NewServer(graphql.NewResolver(svc, store), nil)).
		Methods(http.MethodGet, http.MethodPost, http.MethodOptions)
	router.Handle("/", graphql.PlaygroundHandler("/query")).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	rest.NewRouter(router, svc, rest.Options{
		Export: export.NewHTTPHandler(export.NewService(svc)),
		Import: ingestion.NewHTTPHandler(ingestion.NewService(svc, ingestion.WithLogger(logger))),
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Content-Disposition"},
	})
	return corsHandler.Handler(router), nil
}
