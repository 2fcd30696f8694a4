package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/hostkit/modules/billing"
	domain "github.com/dmitrymomot/hostkit/pkg/billing"
	"github.com/dmitrymomot/hostkit/pkg/billing/pgstore"
	"github.com/dmitrymomot/hostkit/pkg/config"
	"github.com/dmitrymomot/hostkit/pkg/httpserver"
	"github.com/dmitrymomot/hostkit/pkg/logger"
	"github.com/dmitrymomot/hostkit/pkg/pg"
	"github.com/dmitrymomot/hostkit/pkg/redis"
	"github.com/dmitrymomot/hostkit/pkg/requestid"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load[appConfig](config.WithEnvFiles(".env"))
	if err != nil {
		return err
	}

	logOpts := []logger.Option{
		logger.WithEnvironment(cfg.Env, "hostkit-billing"),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	}
	if cfg.LogLevel != "" {
		logOpts = append(logOpts, logger.WithLevelName(cfg.LogLevel))
	}
	log := logger.New(logOpts...)
	slog.SetDefault(log)

	catalog, err := loadCatalog(ctx, cfg.PlansFile)
	if err != nil {
		return err
	}

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	migCfg := cfg.PG
	migCfg.MigrationsDir = pgstore.MigrationsDir
	if err := pg.Migrate(ctx, pool, migCfg, pgstore.Migrations, log); err != nil {
		return err
	}

	checks := map[string]httpserver.Check{"postgres": pg.Healthcheck(pool)}
	svcOpts := []domain.ServiceOption{
		domain.WithLogger(log),
		domain.WithInvoiceDueIn(cfg.InvoiceDueIn),
		domain.WithLockTTL(cfg.LockTTL),
	}
	if cfg.PropertiesTable != "" {
		svcOpts = append(svcOpts, domain.WithPropertyCounter(
			pgstore.PropertyCounter(pool, cfg.PropertiesTable, cfg.PropertiesOwnerBy)))
	}
	if cfg.RedisLocker {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		svcOpts = append(svcOpts, domain.WithLocker(
			redis.NewLocker(client, redis.WithPrefix(cfg.Redis.LockPrefix))))
		checks["redis"] = redis.Healthcheck(client)
	}

	svc := domain.NewService(catalog, pgstore.New(pool), svcOpts...)

	modOpts := []billing.Option{billing.WithLogger(log)}
	if !cfg.PaymentCallbacks {
		modOpts = append(modOpts, billing.WithoutPaymentCallbacks())
	}
	mod := billing.New(svc, billing.HeaderUserResolver(cfg.UserHeader), modOpts...)

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, 5*time.Second, checks))
	r.Mount("/billing", mod.Handle())

	srv := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithBackgroundJob("expire-subscriptions", expireLoop(svc, log, cfg.ExpireInterval, cfg.ExpireBatch)),
	)
	return srv.Run(ctx, r)
}

func loadCatalog(ctx context.Context, path string) (*domain.Catalog, error) {
	if path == "" {
		return domain.DefaultCatalog(), nil
	}
	return domain.LoadCatalog(ctx, domain.NewYAMLSource(path))
}

// expireLoop flips lapsed subscriptions to EXPIRED. Failures are logged and
// retried on the next tick.
func expireLoop(svc domain.Service, log *slog.Logger, every time.Duration, batch int) httpserver.Job {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			for {
				n, err := svc.ExpireDue(ctx, batch)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						log.ErrorContext(ctx, "expire subscriptions", logger.Error(err))
					}
					break
				}
				if n < batch {
					break
				}
			}
		}
	}
}
