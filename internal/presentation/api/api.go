package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/se360/notification-service/internal/infrastructure/configs"
	"github.com/se360/notification-service/internal/infrastructure/logging"
	healthHandler "github.com/se360/notification-service/internal/presentation/handler/health"
	notificationsHandler "github.com/se360/notification-service/internal/presentation/handler/notifications"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	config               configs.Config
	healthHandler        *healthHandler.Handler
	notificationsHandler *notificationsHandler.Handler
	logger               logging.Logger
}

func NewApplication(
	config configs.Config,
	healthHandler *healthHandler.Handler,
	notificationsHandler *notificationsHandler.Handler,
	logger logging.Logger,
) *Application {
	return &Application{
		config:               config,
		healthHandler:        healthHandler,
		notificationsHandler: notificationsHandler,
		logger:               logger,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(app.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(app.prometheusMiddleware)
	r.Use(app.enableCors)

	r.Get("/health", app.healthHandler.GetHealth)
	r.Get("/healthz", app.healthHandler.GetHealth)
	r.Get("/ready", app.healthHandler.GetHealth)
	r.Get("/live", app.healthHandler.GetHealth)

	r.Handle("/metrics", promhttp.Handler())

	r.Get(app.config.WebSocket.Path, app.notificationsHandler.Connect)

	return otelhttp.NewHandler(r, "notification-service",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics"
		}),
	)
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
// Hijacked websocket connections are not tracked by the server; the gateway
// closes them.
func (app *Application) Run(ctx context.Context, mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error, 1)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "server is shutting down", map[logging.ExtraKey]any{
			"addr": srv.Addr,
		})

		shutdown <- srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdown; err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
