package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/direct-line/internal/api/http"
	"github.com/spec-kit/direct-line/internal/api/http/handlers"
	"github.com/spec-kit/direct-line/internal/auth"
	"github.com/spec-kit/direct-line/internal/config"
	"github.com/spec-kit/direct-line/internal/events"
	"github.com/spec-kit/direct-line/internal/observability"
	"github.com/spec-kit/direct-line/internal/persistence"
	"github.com/spec-kit/direct-line/internal/repository"
	"github.com/spec-kit/direct-line/internal/service"
	"github.com/spec-kit/direct-line/internal/storage"
	"github.com/spec-kit/direct-line/internal/worker"
)

type stores struct {
	tickets repository.TicketRepository
	history repository.TicketHistoryRepository
	staff   repository.StaffRepository
	closers []func()
	pingers map[string]handlers.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := openStores(ctx, cfg, logger)
	defer func() {
		for _, closeFn := range st.closers {
			closeFn()
		}
	}()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var sequence service.SequenceSource
	var publisher service.EventPublisher
	if redis.Available() {
		st.pingers["redis"] = redis
		sequence = persistence.NewRedisSequence(redis.Client, cfg.Redis.SequenceKey)
		publisher = persistence.NewRedisEventPublisher(redis.Client, cfg.Redis.EventsChannel)
	}

	var images storage.ImageStore
	if cfg.ObjectStore.Enabled() {
		minioStore, err := storage.NewMinioStore(ctx, cfg.ObjectStore, logger)
		if err != nil {
			logger.Fatal("failed to init object storage", zap.Error(err))
		}
		images = minioStore
		st.pingers["objectStorage"] = minioStore
	} else {
		logger.Info("MINIO_ENDPOINT not provided; image uploads disabled")
	}

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, publisher, logger, cfg.Notification)
	notificationsDone := worker.StartNotificationWorker(ctx, notificationService, logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:    st.tickets,
		HistoryRepo:   st.history,
		Images:        images,
		MaxImageBytes: cfg.ObjectStore.MaxImageBytes(),
		Sequence:      sequence,
		Dispatcher:    dispatcher,
		Logger:        logger,
	})
	highest, err := ticketService.AlignSequences(ctx)
	if err != nil {
		logger.Fatal("failed to align ticket sequences", zap.Error(err))
	}
	logger.Info("ticket sequences aligned", zap.Int64("highest_ticket", highest))
	if cfg.App.SeedDemoData {
		if _, err := ticketService.SeedDemo(ctx); err != nil {
			logger.Fatal("failed to seed demo tickets", zap.Error(err))
		}
	}

	authService := service.NewAuthService(*cfg, service.AuthDependencies{StaffRepo: st.staff, Logger: logger})
	if _, err := authService.EnsureBootstrapAdmin(ctx, cfg.Auth); err != nil {
		logger.Fatal("failed to create bootstrap admin", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	app := httptransport.NewApp(httptransport.ServerConfig{
		AppName:   cfg.App.Name,
		BodyLimit: int(cfg.ObjectStore.MaxImageBytes()) + 1<<20,
		Middlewares: httptransport.MiddlewareConfig{
			Timeout:        cfg.App.RequestTimeout(),
			AllowedOrigins: cfg.App.CORSAllowedOrigins,
		},
		Routes: httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, st.pingers, metrics),
			Tickets:        handlers.NewTicketsHandler(ticketService),
			Staff:          handlers.NewStaffHandler(authService),
			AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), st.staff),
			RequireStaff:   cfg.Auth.RequireStaff,
		},
	}, logger, metrics)

	go func() {
		logger.Info("http server starting",
			zap.String("addr", cfg.App.Addr()),
			zap.String("store", cfg.Store.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	notificationsDone.Wait()
}

// openStores connects the configured ticket backend. Staff accounts live in
// Postgres when it is the backend and in memory otherwise.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) stores {
	st := stores{pingers: map[string]handlers.Pinger{}}

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		st.closers = append(st.closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		pool := pg.PoolHandle()
		st.tickets = repository.NewTicketRepository(pool)
		st.history = repository.NewTicketHistoryRepository(pool)
		st.staff = repository.NewStaffRepository(pool)
		st.pingers["postgres"] = pg
	case config.StoreDriverMongo:
		mg, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			logger.Fatal("failed to connect mongo", zap.Error(err))
		}
		st.closers = append(st.closers, func() { mg.Close(context.Background()) })
		tickets, err := repository.NewMongoTicketRepository(ctx, mg.Database)
		if err != nil {
			logger.Fatal("failed to prepare mongo collections", zap.Error(err))
		}
		st.tickets = tickets
		st.history = repository.NewMongoTicketHistoryRepository(mg.Database, uuid.NewString)
		st.staff = repository.NewMemoryStaffRepository()
		st.pingers["mongo"] = mg
	default:
		logger.Warn("using in-memory store; tickets are lost on restart")
		st.tickets = repository.NewMemoryTicketRepository()
		st.history = repository.NewMemoryTicketHistoryRepository()
		st.staff = repository.NewMemoryStaffRepository()
	}
	return st
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
