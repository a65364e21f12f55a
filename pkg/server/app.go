package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TokenPulse/internal/usecase"
	"TokenPulse/pkg/cache"
	pkgch "TokenPulse/pkg/clickhouse"
	"TokenPulse/pkg/config"
	xhttp "TokenPulse/pkg/http"
	pkgkafka "TokenPulse/pkg/kafka"
	applogger "TokenPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	consumer   *pkgkafka.Consumer
	gateway    *usecase.AnalysisGateway
	dispatcher *usecase.Dispatcher
	httpServer *xhttp.Server
	producer   *pkgkafka.Producer
	chClient   *pkgch.Client
	cache      cache.Service
}

// New creates a new App instance with all dependencies. chClient may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	consumer *pkgkafka.Consumer,
	gateway *usecase.AnalysisGateway,
	dispatcher *usecase.Dispatcher,
	httpServer *xhttp.Server,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	c cache.Service,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		consumer:   consumer,
		gateway:    gateway,
		dispatcher: dispatcher,
		httpServer: httpServer,
		producer:   producer,
		chClient:   chClient,
		cache:      c,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := a.Start(); err != nil {
		return err
	}

	<-sigCh
	a.log.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Gateway.DrainTimeout+a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(ctx)
}

// Start begins consuming analysis requests and serving HTTP.
func (a *App) Start() error {
	a.consumer.RegisterHandler(a.gateway)
	go func() {
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
		}
	}()
	a.log.Info("kafka consumer started",
		applogger.String("topic", a.gateway.Topic()),
		applogger.Strings("brokers", a.cfg.Kafka.Brokers),
	)

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))
	return nil
}

// Shutdown stops intake first, drains in-flight requests, then releases infrastructure.
// Requests still queued when the drain deadline passes are published as retryable errors.
func (a *App) Shutdown(ctx context.Context) error {
	start := time.Now()
	a.log.Info("shutting down...")

	if err := a.consumer.Stop(ctx); err != nil {
		a.log.Warn("kafka consumer stop error", applogger.Error(err))
	}

	drainCtx, cancelDrain := context.WithTimeout(ctx, a.cfg.Gateway.DrainTimeout)
	if err := a.dispatcher.Stop(drainCtx); err != nil {
		a.log.Warn("dispatcher drain incomplete", applogger.Error(err))
	}
	cancelDrain()

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	if err := a.httpServer.Stop(httpCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	cancelHTTP()

	// the collector publishes through the producer, flush it first
	a.log.RemoveCollector()
	if err := a.producer.Close(); err != nil {
		a.log.Warn("kafka producer close error", applogger.Error(err))
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.log.Warn("cache close error", applogger.Error(err))
	}

	a.log.Info("shutdown complete", applogger.Duration("elapsed", time.Since(start)))
	return nil
}
