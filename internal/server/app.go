// Package server initializes and runs the session service. It wires the
// database, the refresh token store, the signing secret provider and the
// HTTP API, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/jsvoboda/authd/internal/logging"
	"github.com/jsvoboda/authd/internal/server/auth"
	"github.com/jsvoboda/authd/internal/server/config"
	"github.com/jsvoboda/authd/internal/server/httpapi"
	"github.com/jsvoboda/authd/internal/server/repositories/refreshtokens"
	"github.com/jsvoboda/authd/internal/server/repositories/repomanager"
	"github.com/jsvoboda/authd/internal/server/secret"
	"github.com/jsvoboda/authd/internal/server/services"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	handler *httpapi.Handler
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepositoryManager(cfg, logger)

	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	secrets := secret.NewProvider(cfg, logger)
	// resolves the signing secret now so a misconfigured one fails at
	// startup, not on the first request
	if _, err := secrets.Secret(ctx); err != nil {
		return nil, err
	}

	tokens := auth.NewManager(secrets, cfg.AccessTokenTTL)
	sessions := services.NewSessionService(db, rm, tokens, logger, cfg)
	handler := httpapi.NewHandler(sessions, tokens, logger, cfg)

	return &App{config: cfg, logger: logger, db: db, handler: handler}, nil
}

func newRepositoryManager(cfg *config.Config, logger logging.Logger) repomanager.RepositoryManager {
	if cfg.RedisAddr == "" {
		return repomanager.NewPostgresRepositoryManager()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	logger.Info(context.Background(), "using redis refresh token store", "addr", cfg.RedisAddr)
	return repomanager.NewPostgresRepositoryManagerWithRefreshStore(refreshtokens.NewRedisRepository(client))
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpapi.NewHTTPServer(app.config.HTTPAddr, app.handler, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing db", "error", err)
	}
}
