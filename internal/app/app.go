package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrocket-server/internal/auth"
	"github.com/vovakirdan/chatrocket-server/internal/config"
	"github.com/vovakirdan/chatrocket-server/internal/core"
	"github.com/vovakirdan/chatrocket-server/internal/events"
	"github.com/vovakirdan/chatrocket-server/internal/media"
	"github.com/vovakirdan/chatrocket-server/internal/ratelimit"
	"github.com/vovakirdan/chatrocket-server/internal/service/messaging"
	"github.com/vovakirdan/chatrocket-server/internal/store"
	"github.com/vovakirdan/chatrocket-server/internal/store/sqldb"
	transporthttp "github.com/vovakirdan/chatrocket-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	publisher       events.Publisher
	redis           *redis.Client
	sweeper         *ratelimit.Memory
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqldb.Open(sqldb.Dialect(cfg.Database.Driver), cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database initialized")

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	uploader, err := newUploader(cfg, logger)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	a.publisher, err = newPublisher(cfg, logger)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	limiter, err := a.newLimiter(cfg)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL,
	}
	authService := auth.NewService(st, jwtConfig)

	a.hub = core.NewHub(logger)
	messagingService := messaging.New(st, a.hub, uploader, a.publisher, messaging.Options{
		MaxMessageLength: cfg.MaxMessageLength,
		Logger:           logger,
	})

	a.server = transporthttp.NewServer(transporthttp.Deps{
		Hub:       a.hub,
		Auth:      authService,
		Store:     st,
		Messaging: messagingService,
		Limiter:   limiter,
		Config:    cfg,
		Logger:    logger,
	})

	return a, nil
}

func newUploader(cfg *config.Config, logger *zerolog.Logger) (media.Uploader, error) {
	if !cfg.S3.Enabled {
		logger.Info().Msg("media storage disabled, inline uploads will be rejected")
		return media.Disabled{}, nil
	}
	uploader, err := media.NewS3Uploader(media.S3Config{
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		PublicURL:       cfg.S3.PublicURL,
	})
	if err != nil {
		return nil, fmt.Errorf("init media storage: %w", err)
	}
	logger.Info().Str("endpoint", cfg.S3.Endpoint).Str("bucket", cfg.S3.Bucket).Msg("media storage initialized")
	return uploader, nil
}

func newPublisher(cfg *config.Config, logger *zerolog.Logger) (events.Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NopPublisher{}, nil
	}
	publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
	if err != nil {
		return nil, fmt.Errorf("init event publisher: %w", err)
	}
	logger.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("kafka publisher initialized")
	return publisher, nil
}

func (a *App) newLimiter(cfg *config.Config) (ratelimit.Limiter, error) {
	if cfg.RateLimitPerMinute <= 0 {
		return ratelimit.Unlimited{}, nil
	}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		a.log.Info().Str("addr", opts.Addr).Msg("redis rate limiter initialized")
		return ratelimit.NewRedis(a.redis, cfg.RateLimitPerMinute, time.Minute), nil
	}
	a.sweeper = ratelimit.NewMemory(cfg.RateLimitPerMinute, time.Minute)
	return a.sweeper, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)
	if a.sweeper != nil {
		a.sweeper.StartSweeper(ctx)
	}

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close event publisher")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
