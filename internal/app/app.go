package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avdeenko/skyhold/internal/client"
	"github.com/avdeenko/skyhold/internal/config"
	"github.com/avdeenko/skyhold/internal/eventbus"
	"github.com/avdeenko/skyhold/internal/postgres"
	"github.com/avdeenko/skyhold/internal/redis"
	postgresrepo "github.com/avdeenko/skyhold/internal/repository/postgres"
	redisrepo "github.com/avdeenko/skyhold/internal/repository/redis"
	"github.com/avdeenko/skyhold/internal/service"
	"github.com/avdeenko/skyhold/internal/service/seathold"
	"github.com/avdeenko/skyhold/internal/service/waitlist"
	httpgin "github.com/avdeenko/skyhold/internal/transport/http/gin"
	"github.com/avdeenko/skyhold/internal/worker"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	bus        *eventbus.Bus
	sweeper    *worker.Sweeper
	cleanup    *worker.WaitlistCleanup
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(context.Background(), redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize the event-bus transport. Redis pub/sub by default; AMQP
	// when the deployment already runs a broker.
	var transport eventbus.Transport
	switch cfg.Bus.Driver {
	case "amqp":
		transport, err = eventbus.NewAMQPTransport(cfg.Bus.AMQPURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize amqp transport: %w", err)
		}
	default:
		transport = eventbus.NewRedisTransport(rdb)
	}

	bus := eventbus.New(transport, cfg.Bus.Source, logger)

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "rl", 10, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Initialize external service clients
	checkin := client.NewCheckinClient(cfg.Clients.CheckinURL, 10*time.Second)
	notify := client.NewNotifier(cfg.Clients.NotificationURL, 20, logger)

	// Initialize services
	services := service.NewServices(store, cache, bus, limiter, checkin, notify, logger, service.Config{
		SeatHold: seathold.Config{
			DefaultHoldTTL: cfg.Hold.DefaultTTL,
			SeatMapTTL:     cfg.Hold.SeatMapTTL,
		},
		Waitlist: waitlist.Config{
			EntryTTL: cfg.Waitlist.EntryTTL,
		},
		PromotionTimeout: cfg.Waitlist.PromotionTimeout,
	})

	// Wire the promotion engine into the bus before the bus starts consuming.
	services.Engine.Register(bus)

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		bus:     bus,
		sweeper: worker.NewSweeper(services.SeatHold, cfg.Hold.SweepInterval, logger),
		cleanup: worker.NewWaitlistCleanup(services.Waitlist, cfg.Waitlist.CleanupInterval, logger),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start event bus consumer
	g.Go(func() error {
		if err := a.bus.Run(gCtx); err != nil && gCtx.Err() == nil {
			return fmt.Errorf("event bus stopped: %w", err)
		}
		return nil
	})

	// Start background workers
	g.Go(func() error {
		if err := a.sweeper.Run(gCtx); err != nil && gCtx.Err() == nil {
			return fmt.Errorf("sweeper stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.cleanup.Run(gCtx); err != nil && gCtx.Err() == nil {
			return fmt.Errorf("waitlist cleanup stopped: %w", err)
		}
		return nil
	})

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
