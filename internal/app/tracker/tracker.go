// Package tracker собирает приложение: хранилище, кеш, брокер, сервисы,
// HTTP-сервер и фоновый проход автопродления.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-tracker/internal/cache"
	"github.com/magabrotheeeer/subscription-tracker/internal/config"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/lifecycle"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/migrations"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/importer"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/scheduler"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/subscription"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/repository"
)

// App содержит HTTP-сервер, проход автопродления и открытые соединения.
type App struct {
	server  *http.Server
	sweeper *scheduler.Sweeper
	logger  *slog.Logger
	db      *repository.Storage
	cache   *cache.Cache
	conn    *amqp.Connection
	ch      *amqp.Channel

	disableSweep    bool
	shutdownTimeout time.Duration
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	var err error
	for range 10 {
		if err = repository.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

// New создает приложение по конфигурации. Если rabbitmq_url пуст,
// события продления не публикуются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	app := &App{
		logger:          logger,
		db:              db,
		disableSweep:    cfg.DisableSweep,
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		app.closeResources()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err = waitForDB(ctx, db); err != nil {
		app.closeResources()
		return nil, err
	}

	app.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		app.closeResources()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	var publisher subscription.Publisher
	if cfg.RabbitMQURL != "" {
		app.conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			app.closeResources()
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		app.ch, err = rabbitmq.SetupChannel(app.conn, rabbitmq.GetLifecycleQueues())
		if err != nil {
			app.closeResources()
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		publisher = rabbitmq.NewPublisher(app.ch, rabbitmq.LifecycleExchange)
	} else {
		logger.Warn("rabbitmq_url is empty, renewal events are not published")
	}

	clk := clock.WallClock
	classifier := lifecycle.NewClassifier(cfg.ExpiringThresholdDays)
	m := metrics.New(prometheus.DefaultRegisterer)

	subscriptionService := subscription.NewSubscriptionService(db, app.cache, publisher, classifier, clk, cfg.CacheTTL, logger)
	importService := importer.New(subscriptionService, db, clk, m, logger)
	app.sweeper = scheduler.NewSweeper(db, app.cache, publisher, classifier, clk, cfg.SweepInterval, m, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Deps{
		Subscriptions: subscriptionService,
		Importer:      importService,
		Sweeper:       app.sweeper,
		Storage:       db,
		TokenMaker:    jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		Clock:         clk,
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run обслуживает HTTP и запускает проходы автопродления до отмены ctx.
// При остановке ждёт текущий проход не дольше shutdown_timeout.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if a.disableSweep {
		a.logger.Info("auto-renewal sweep disabled")
	} else {
		a.sweeper.Start(sweepCtx)
	}

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}
	stopSweep()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.logger.Info("waiting for in-flight sweep")
	if err := a.sweeper.Wait(timeoutCtx); err != nil {
		a.logger.Error("sweep did not finish before shutdown", sl.Err(err))
	}

	a.logger.Info("shutting down HTTP server gracefully")
	if err := a.server.Shutdown(timeoutCtx); err != nil && runErr == nil {
		runErr = err
	}
	a.closeResources()
	return runErr
}

func (a *App) closeResources() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
