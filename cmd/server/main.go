// Package main - точка входа сервера "Детектив Квиз".
//
// Сервер принимает результаты игр от контроллера игровых сессий,
// прогоняет их через движок прогрессии (опыт, уровень, репутация,
// звание, достижения) и отдаёт лидерборды из пересобираемых снапшотов.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/detective-hub/detective-quiz-hub/config"
	applb "github.com/detective-hub/detective-quiz-hub/internal/application/leaderboard"
	"github.com/detective-hub/detective-quiz-hub/internal/application/progression"
	"github.com/detective-hub/detective-quiz-hub/internal/infrastructure/messaging"
	"github.com/detective-hub/detective-quiz-hub/internal/infrastructure/persistence/postgres"
	"github.com/detective-hub/detective-quiz-hub/internal/infrastructure/persistence/redis"
	httpiface "github.com/detective-hub/detective-quiz-hub/internal/interface/http"
	"github.com/detective-hub/detective-quiz-hub/pkg/logger"
	"github.com/detective-hub/detective-quiz-hub/pkg/retry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	slogLog := setupSlog(cfg)

	log.Info("starting Detective Quiz Hub",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	var dbConn *postgres.Connection
	err = retry.DatabaseRetrier().Do(ctx, func(ctx context.Context) error {
		conn, connErr := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if connErr != nil {
			return retry.Retryable(connErr)
		}
		dbConn = conn
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.AutoMigrate {
		log.Info("checking database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПОДКЛЮЧЕНИЕ К REDIS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to Redis...")
	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	var redisCache *redis.Cache
	err = retry.CacheRetrier().Do(ctx, func(ctx context.Context) error {
		cache, connErr := redis.NewCache(redisCfg)
		if connErr != nil {
			return retry.Retryable(connErr)
		}
		redisCache = cache
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisCache.Close()
	log.Info("Redis connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 6. РЕПОЗИТОРИИ И ХРАНИЛИЩА
	// ─────────────────────────────────────────────────────────────────────────
	playerRepo := postgres.NewPlayerRepository(dbConn, cfg.Database.QueryTimeout)
	snapshotStore := redis.NewSnapshotStore(redisCache, 3*cfg.Leaderboard.RefreshInterval)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultConfig()
	busCfg.Logger = slogLog
	eventBus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. СЕРВИСЫ ПРИЛОЖЕНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	progressionSvc := progression.NewService(playerRepo, eventBus, log, nil)

	lbCfg := applb.DefaultConfig()
	lbCfg.RefreshInterval = cfg.Leaderboard.RefreshInterval
	lbCfg.SnapshotSize = cfg.Leaderboard.SnapshotSize
	lbCfg.DefaultLimit = cfg.Leaderboard.DefaultLimit

	leaderboardCache := applb.NewCache(playerRepo, snapshotStore, eventBus, slogLog, nil, lbCfg)
	leaderboardCache.Start(ctx)
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer stopCancel()
		if err := leaderboardCache.Stop(stopCtx); err != nil {
			log.Warn("leaderboard cache stop timed out", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpiface.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout

	server := httpiface.NewServer(serverCfg, httpiface.Dependencies{
		Progression: progressionSvc,
		Leaderboard: leaderboardCache,
		Players:     playerRepo,
		Logger:      log,
		HealthChecks: map[string]httpiface.HealthCheck{
			"postgres": dbConn.Ping,
			"redis":    redisCache.Ping,
		},
	})

	serverErr := server.StartAsync()

	log.Info("Detective Quiz Hub is running",
		logger.String("address", server.Address()),
		logger.String("leaderboard_refresh", cfg.Leaderboard.RefreshInterval.String()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", logger.Err(err))
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает основной структурированный логгер приложения.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.AddCaller = cfg.Observability.AddCaller

	return logger.New(opts)
}

// setupSlog настраивает slog для фоновых компонентов (кеш лидерборда, шина).
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
