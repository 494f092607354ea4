package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/commentkit/commentkit/internal/adapter/cache"
	mailadapter "github.com/commentkit/commentkit/internal/adapter/mail"
	"github.com/commentkit/commentkit/internal/config"
	httptransport "github.com/commentkit/commentkit/internal/http"
	"github.com/commentkit/commentkit/internal/http/handler"
	httpmiddleware "github.com/commentkit/commentkit/internal/http/middleware"
	"github.com/commentkit/commentkit/internal/origin"
	"github.com/commentkit/commentkit/internal/repository"
	"github.com/commentkit/commentkit/internal/server"
	"github.com/commentkit/commentkit/internal/service"
	"github.com/commentkit/commentkit/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newUserRepository,
			newSiteRepository,
			newSessionRepository,
			newMagicLinkRepository,
			newCommentRepository,
			newRedisClient,
			newTrustCache,
			newMailer,
			newRateLimiter,
			origin.NewResolver,
			service.NewAuthService,
			service.NewWidgetService,
			handler.NewWidgetHandler,
			handler.NewAuthHandler,
			handler.NewCommentHandler,
			newHealthHandler,
			newSessionMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newSiteRepository(pool *pgxpool.Pool) repository.SiteRepository {
	return repository.NewPostgresSiteRepo(pool)
}

func newSessionRepository(pool *pgxpool.Pool) repository.SessionRepository {
	return repository.NewPostgresSessionRepo(pool)
}

func newMagicLinkRepository(pool *pgxpool.Pool) repository.MagicLinkRepository {
	return repository.NewPostgresMagicLinkRepo(pool)
}

func newCommentRepository(pool *pgxpool.Pool) repository.CommentRepository {
	return repository.NewPostgresCommentRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newTrustCache(client redis.UniversalClient) repository.DomainTrustCache {
	return cacheadapter.NewRedisTrustCache(client)
}

func newMailer(cfg config.Config, logger *zap.Logger) mailadapter.Sender {
	if cfg.MailEndpoint != "" {
		return mailadapter.NewHTTPSender(nil, cfg.MailEndpoint, cfg.MailAPIKey, cfg.MailFrom)
	}
	logger.Warn("MAIL_ENDPOINT not set, logging magic links instead of sending email")
	return mailadapter.NewLogSender(logger)
}

func newRateLimiter(cfg config.Config) *httpmiddleware.RateLimiter {
	return httpmiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newHealthHandler(pool *pgxpool.Pool, client redis.UniversalClient) *handler.HealthHandler {
	return handler.NewHealthHandler(pool, client)
}

func newSessionMiddleware(auth *service.AuthService) *httpmiddleware.Session {
	return &httpmiddleware.Session{Auth: auth}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
