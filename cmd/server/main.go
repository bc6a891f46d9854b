package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dfryer1193/shift/internal/audit"
	"github.com/dfryer1193/shift/internal/config"
	"github.com/dfryer1193/shift/internal/data/repository/postgres"
	"github.com/dfryer1193/shift/internal/health"
	"github.com/dfryer1193/shift/internal/migrations"
	"github.com/dfryer1193/shift/internal/rest"
	"github.com/dfryer1193/shift/internal/rest/handlers"
	"github.com/dfryer1193/shift/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	port := flag.Int("port", 8080, "port to listen on")
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Connect bounds each attempt itself; an outer deadline here would cut
	// the retry loop short.
	pool, err := postgres.Connect(context.Background(), cfg.DatabaseURL, postgres.ConnectOptions{
		MaxConns:       cfg.Connection.MaxConns,
		ConnectTimeout: cfg.Connection.ConnectTimeout,
		IdleTimeout:    cfg.Connection.IdleTimeout,
		MaxRetries:     cfg.Connection.MaxRetries,
		RetryDelay:     cfg.Connection.RetryDelay,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	ledger := postgres.NewLedgerRepository(pool)
	schema := postgres.NewSchemaRepository(pool)
	executor := postgres.NewExecutor(pool)
	scanner := utils.NewMigrationScanner(cfg.MigrationsDir)

	auditLog := audit.New(cfg.Audit.Path, cfg.Environment, cfg.Audit.Enabled, false)
	defer auditLog.Close()

	status := migrations.NewStatusReporter(ledger, scanner)
	checker := health.NewChecker(schema, ledger, cfg.CriticalTables, cfg.Health.Timeout)
	rollbacker := migrations.NewRollbacker(ledger, executor, scanner, auditLog, cfg.Rollback.Enabled)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	rest.SetupRoutes(r, handlers.NewStatusHandler(status, checker, rollbacker))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: r,
	}

	go func() {
		log.Info().Msg("Starting server on port :" + fmt.Sprint(*port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info().Msg("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to shutdown server")
	}

	log.Info().Msg("Server stopped")
}
