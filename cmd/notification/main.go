package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/se360/notification-service/internal/application/notification"
	"github.com/se360/notification-service/internal/infrastructure/auth"
	"github.com/se360/notification-service/internal/infrastructure/configs"
	"github.com/se360/notification-service/internal/infrastructure/events"
	"github.com/se360/notification-service/internal/infrastructure/logging"
	"github.com/se360/notification-service/internal/infrastructure/messaging"
	"github.com/se360/notification-service/internal/infrastructure/metrics"
	"github.com/se360/notification-service/internal/infrastructure/ratelimiter"
	"github.com/se360/notification-service/internal/infrastructure/tracing"
	"github.com/se360/notification-service/internal/infrastructure/ws"
	"github.com/se360/notification-service/internal/persistence/db"
	"github.com/se360/notification-service/internal/persistence/repository"
	"github.com/se360/notification-service/internal/presentation/api"
	"github.com/se360/notification-service/internal/presentation/handler/health"
	"github.com/se360/notification-service/internal/presentation/handler/notifications"
)

const (
	serviceName = "notification-service"
)

func main() {
	os.Exit(run())
}

// run owns every deferred cleanup so main can exit with a status code
// without skipping them.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		logging.NewLogger(logging.NewDefaultConfig()).Fatal(logging.General, logging.Startup, "failed to load config", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Logger,
	})

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: serviceName,
		Environment: cfg.Tracing.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
	})
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to initialize the tracer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer shutdownTracer(context.Background())

	metrics.Register()

	validator, err := auth.LoadValidator(cfg.Auth.PublicKeyPath, cfg.Auth.PublicKeyPEM, cfg.Auth.Leeway)
	if err != nil {
		logger.Fatal(logging.Auth, logging.Startup, "failed to load token public key", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	gateway := ws.NewGateway(validator, ws.Options{
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		SendBuffer:     cfg.WebSocket.SendBuffer,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, logger)

	rabbitmq := messaging.NewRabbitMQ(messaging.Options{
		URI: cfg.RabbitMQ.URI,
		Topology: messaging.Topology{
			Exchange:             cfg.RabbitMQ.Exchange,
			DeadLetterExchange:   cfg.RabbitMQ.DeadLetterExchange,
			Queue:                cfg.RabbitMQ.Queue,
			DeadLetterQueue:      cfg.RabbitMQ.DeadLetterQueue,
			DeadLetterRoutingKey: cfg.RabbitMQ.DeadLetterRoutingKey,
			RoutingKeys:          cfg.RabbitMQ.RoutingKeys,
		},
		ReconnectDelay: cfg.RabbitMQ.ReconnectDelay,
		Logger:         logger,
	})
	defer rabbitmq.Close()

	service := notification.NewService(gateway, logger)
	router := events.NewRouter(service)
	for _, key := range cfg.RabbitMQ.RoutingKeys {
		if !router.Handles(key) {
			logger.Warn(logging.RabbitMQ, logging.Topology, "bound routing key has no handler, its events will be dropped", map[logging.ExtraKey]any{
				logging.RoutingKey: key,
			})
		}
	}

	consumer := events.NewConsumer(rabbitmq, router, events.ConsumerOptions{
		Queue:      cfg.RabbitMQ.Queue,
		Prefetch:   cfg.RabbitMQ.Prefetch,
		RetryDelay: cfg.RabbitMQ.ReconnectDelay,
	}, logger)

	var cache ratelimiter.GetterSetter = ratelimiter.NewInMemory()
	if cfg.RateLimiter.RedisAddr != "" {
		store := ratelimiter.NewRedis(cfg.RateLimiter.RedisAddr)
		if err := store.Ping(ctx); err != nil {
			logger.Warn(logging.Redis, logging.Startup, "redis unreachable, rate limiter fails open until it recovers", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		cache = store
	}
	defer cache.Close()

	rl := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		Cache:            cache,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})

	app := api.NewApplication(
		*cfg,
		health.NewHandler(gateway, rabbitmq),
		notifications.NewHandler(gateway, rl, logger),
		logger,
	)

	// A topology conflict is a deployment error; everything else retries.
	fatal := make(chan error, 2)
	var failed atomic.Bool
	var workers sync.WaitGroup

	workers.Add(1)
	go func() {
		defer workers.Done()
		if err := consumer.Listen(ctx); err != nil {
			fatal <- err
		}
	}()

	if cfg.DeadLetterAudit.Enabled {
		mongoCfg := &db.MongoConfig{
			URI:        cfg.DeadLetterAudit.MongoURI,
			Database:   cfg.DeadLetterAudit.Database,
			Collection: cfg.DeadLetterAudit.Collection,
		}
		client, err := db.NewMongoClient(ctx, mongoCfg)
		if err != nil {
			logger.Fatal(logging.MongoDB, logging.Startup, "failed to connect to dead-letter audit store", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		defer db.DisconnectMongo(context.Background(), client)

		repo := repository.NewDeadLetterLogRepository(db.GetDatabase(client, mongoCfg), mongoCfg.Collection)
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warn(logging.MongoDB, logging.Startup, "failed to ensure dead-letter indexes", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}

		auditor := events.NewDeadLetterAuditor(rabbitmq.Dedicated(), repo, cfg.RabbitMQ.DeadLetterQueue, cfg.RabbitMQ.ReconnectDelay, logger)
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := auditor.Listen(ctx); err != nil {
				fatal <- err
			}
		}()
	}

	go func() {
		select {
		case err := <-fatal:
			msg := "consumer stopped"
			if errors.Is(err, messaging.ErrTopologyConflict) {
				msg = "broker topology conflicts with existing declarations"
			}
			logger.Error(logging.RabbitMQ, logging.Topology, msg, map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
			failed.Store(true)
			stop()
		case <-ctx.Done():
		}
	}()

	serverErr := app.Run(ctx, app.Mount())

	// Consumers drain their in-flight deliveries before sessions close.
	stop()
	workers.Wait()
	gateway.Shutdown()

	logger.Info(logging.General, logging.Shutdown, "notification service stopped", nil)

	if serverErr != nil {
		logger.Error(logging.General, logging.Shutdown, "http server error", map[logging.ExtraKey]any{
			logging.ErrorMessage: serverErr.Error(),
		})
		failed.Store(true)
	}
	if failed.Load() {
		return 1
	}
	return 0
}
