package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/diagnosis/leadflow/internal/http/handlers"
	httpmw "github.com/diagnosis/leadflow/internal/http/middleware"
	"github.com/diagnosis/leadflow/internal/repository"
	"github.com/diagnosis/leadflow/internal/service"
	"github.com/diagnosis/leadflow/pkg/cache"
	"github.com/diagnosis/leadflow/pkg/config"
	"github.com/diagnosis/leadflow/pkg/database"
	"github.com/diagnosis/leadflow/pkg/events"
	"github.com/diagnosis/leadflow/pkg/logger"
	mw "github.com/diagnosis/leadflow/pkg/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		logger.Error("Lead API exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	medium, closeMedium, err := openMedium(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeMedium()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		bus, err := events.NewNATSEventBus(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer bus.Close()
		publisher = bus
	} else {
		logger.Info("NATS_URL not set, lead events disabled")
	}

	var routeMW handlers.Middlewares
	var loginLimiter httpmw.Limiter = httpmw.NewMemoryLimiter(cfg.RateLimit.LoginRequests, cfg.RateLimit.LoginWindow)
	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		loginLimiter = redisLimiter(client, cfg)
		routeMW.Idempotency = mw.IdempotencyMiddleware(cache.NewIdempotencyStore(client), cfg.Redis.IdempotencyTTL)
	} else {
		logger.Info("REDIS_URL not set, using in-memory login limiter and no idempotency replay")
	}
	routeMW.LoginRateLimit = httpmw.RateLimit(loginLimiter, cfg.RateLimit.TrustProxy)

	authService, err := service.NewAuthService(cfg.Auth)
	if err != nil {
		return err
	}
	leadService := service.NewLeadService(repository.NewLeadRepository(medium), publisher)
	h := handlers.New(leadService, authService)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("leads"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.CORS(cfg.CORS))
	r.Use(mw.Health)
	r.Mount(cfg.Server.BasePath, h.Routes(routeMW))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting lead API", "port", cfg.Server.Port, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down lead API...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownWait)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openMedium returns where the lead collection lives and a func releasing it.
func openMedium(ctx context.Context, cfg *config.Config) (repository.Medium, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		medium, err := repository.NewPostgresMedium(ctx, pool, cfg.Store.Collection)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return medium, pool.Close, nil
	default:
		medium, err := repository.NewFileMedium(cfg.Store.DataFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using file store", "path", medium.Path())
		return medium, func() {}, nil
	}
}

func redisLimiter(client *redis.Client, cfg *config.Config) httpmw.Limiter {
	counter := cache.NewWindowCounter(client, "ratelimit:login:")
	return httpmw.NewRedisLimiter(counter, cfg.RateLimit.LoginRequests, cfg.RateLimit.LoginWindow)
}
