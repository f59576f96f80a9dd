// Command strava-leaderboard runs the weekly Strava leaderboard web application.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/justestif/go-strava-leaderboard/internal/auth"
	"github.com/justestif/go-strava-leaderboard/internal/config"
	"github.com/justestif/go-strava-leaderboard/internal/db"
	"github.com/justestif/go-strava-leaderboard/internal/leaderboard"
	"github.com/justestif/go-strava-leaderboard/internal/logging"
	"github.com/justestif/go-strava-leaderboard/internal/scoring"
	"github.com/justestif/go-strava-leaderboard/internal/sync"
	"github.com/justestif/go-strava-leaderboard/internal/web"
	webfs "github.com/justestif/go-strava-leaderboard/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx := context.Background()

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	sessions, closeSessions, err := newSessionManager(ctx, cfg, database, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	authenticator, err := auth.New(auth.Config{
		ClientID:     cfg.StravaClientID,
		ClientSecret: cfg.StravaClientSecret,
		RedirectURL:  cfg.StravaRedirectURI,
	})
	if err != nil {
		return fmt.Errorf("creating authenticator: %w", err)
	}

	resolver, err := cfg.Resolver()
	if err != nil {
		return err
	}
	engine := scoring.NewEngine(
		scoring.WithFootballMinSeconds(cfg.FootballMinSeconds),
		scoring.WithWeightTrainingMinSeconds(cfg.WeightTrainingMinSeconds),
	)

	syncService := sync.NewFromDB(database,
		sync.WithSyncCooldown(cfg.SyncCooldown),
		sync.WithPerPage(cfg.StravaPerPage),
		sync.WithLogger(logger),
	)
	boards := leaderboard.NewService(database.Activities(), database.Profiles(),
		leaderboard.WithEngine(engine),
		leaderboard.WithResolver(resolver),
		leaderboard.WithLogger(logger),
	)

	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}

	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	server, err := web.NewServer(web.ServerConfig{
		Addr:        cfg.HTTPAddr,
		TemplatesFS: templates,
		StaticFS:    static,
		Auth:        authenticator,
		Sessions:    sessions,
		Sync:        syncService,
		Boards:      boards,
		Health:      database.Ping,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run()
}

// newSessionManager builds the configured session backend and a cleanup func.
func newSessionManager(ctx context.Context, cfg *config.Config, database *db.DB, logger *slog.Logger) (web.SessionManager, func(), error) {
	switch cfg.SessionBackend {
	case config.SessionRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("using redis sessions", slog.String("addr", cfg.RedisAddr))
		return web.NewRedisSessionStore(client, logger), func() { _ = client.Close() }, nil

	case config.SessionPostgres:
		store := web.NewDBSessionStore(database.Sessions(), logger)
		if removed, err := store.PurgeExpired(ctx); err != nil {
			logger.Warn("purging expired sessions", slog.Any("error", err))
		} else if removed > 0 {
			logger.Info("purged expired sessions", slog.Int64("count", removed))
		}
		return store, func() {}, nil

	default:
		return web.NewSessionStore(), func() {}, nil
	}
}
