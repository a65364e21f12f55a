package di

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"TokenPulse/internal/domain/repository"
	"TokenPulse/internal/handler/api"
	internalrepo "TokenPulse/internal/repository"
	svcmetrics "TokenPulse/internal/service/metrics"
	"TokenPulse/internal/service/ratelimit"
	"TokenPulse/internal/services/analysis"
	"TokenPulse/internal/services/fixtures"
	"TokenPulse/internal/services/inference"
	"TokenPulse/internal/services/market"
	"TokenPulse/internal/services/news"
	"TokenPulse/internal/usecase"
	"TokenPulse/pkg/cache"
	pkgch "TokenPulse/pkg/clickhouse"
	"TokenPulse/pkg/config"
	xhttp "TokenPulse/pkg/http"
	pkgkafka "TokenPulse/pkg/kafka"
	applogger "TokenPulse/pkg/logger"
	"TokenPulse/pkg/metrics"
	"TokenPulse/pkg/server"
)

// ProvideLogger builds the application logger. When the collector is enabled,
// aggregated error lines are shipped to Kafka through the producer.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	log, err := applogger.New(&applogger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: "tokenpulse",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collector.Enabled {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.CountThreshold,
			Topic:          cfg.Log.Collector.Topic,
			Publisher:      producer,
		})
	}
	return log, nil
}

// ProvideMetrics creates a Prometheus metrics recorder and registers provider collectors.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideCache builds the shared key/value store used for de-duplication,
// publish guards and upstream response caching.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	c := cfg.Cache
	if c.Backend == "memory" {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(c.MemoryMaxSize),
			cache.WithMemoryCleanup(time.Minute),
		), nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(c.Redis.Host),
		cache.WithRedisPort(c.Redis.Port),
		cache.WithRedisPassword(c.Redis.Password),
		cache.WithRedisDB(c.Redis.DB),
		cache.WithRedisPool(c.Redis.PoolSize, 2, 4*time.Second),
		cache.WithRedisPrefix(c.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if c.Backend == "layered" {
		return cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(c.MemoryMaxSize),
			cache.WithLayeredMemoryTTL(c.MemoryTTL),
		), nil
	}
	return rc, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	p := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(p.Compression),
		pkgkafka.WithRequiredAcks(p.RequiredAcks),
		pkgkafka.WithBatchTimeout(p.BatchTimeout),
		pkgkafka.WithTimeouts(p.WriteTimeout, p.ReadTimeout),
		pkgkafka.WithMaxAttempts(p.MaxAttempts),
		pkgkafka.WithAutoCreateTopics(p.AutoCreateTopics),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the request consumer with correlation and failure hooks.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger, m repository.Metrics) (*pkgkafka.Consumer, error) {
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerStartOffset(c.StartOffset),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.RequestIDHook,
		pkgkafka.HookFuncs{
			After: func(ctx context.Context, topic string, km kafka.Message, attempts int, err error) {
				if err == nil {
					return
				}
				m.RecordError("consume")
				log.Warn("request message failed",
					applogger.String("topic", topic),
					applogger.String("request_id", pkgkafka.RequestIDFrom(ctx)),
					applogger.Int("attempts", attempts),
					applogger.Error(err),
				)
			},
		},
	))
	return consumer, nil
}

// ProvideClickHouseClient opens the audit database. Returns nil when audit is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.Audit.Enabled {
		return nil, nil
	}
	ch := cfg.Audit.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithTimeouts(ch.Timeout, ch.Timeout),
		pkgch.WithAsyncInsert(true, false),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideOutcomeAudit creates the ClickHouse audit table writer, or nil when audit is disabled.
func ProvideOutcomeAudit(cfg *config.Config, client *pkgch.Client, log *applogger.Logger) (repository.OutcomeAudit, error) {
	if client == nil {
		return nil, nil
	}
	audit, err := internalrepo.NewCHOutcomeAudit(client.DB(), cfg.Audit.ClickHouse.Table, cfg.Audit.ClickHouse.Timeout)
	if err != nil {
		return nil, fmt.Errorf("outcome audit: %w", err)
	}
	audit.SetLogger(log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, audit.Schema()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return audit, nil
}

// ProvideOutcomeSink writes outcomes to the result topic.
func ProvideOutcomeSink(cfg *config.Config, producer *pkgkafka.Producer) repository.OutcomeSink {
	return internalrepo.NewKafkaOutcomeSink(producer, cfg.Kafka.ResultTopic)
}

// ProvideRateLimiter configures one bucket per upstream provider.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	l := ratelimit.New()
	l.Configure("binance", cfg.Market.RequestsPerMin, 10)
	l.Configure("google_news", cfg.News.RequestsPerMin, 2)
	l.Configure("tavily", cfg.News.RequestsPerMin, 2)
	l.Configure("gemini", cfg.Gemini.RequestsPerMin, 2)
	return l
}

// ProvideMarketData creates the Binance client behind a short-lived candle cache.
func ProvideMarketData(cfg *config.Config, limiter *ratelimit.Limiter, c cache.Service, log *applogger.Logger) repository.MarketData {
	client := market.NewBinanceClient(
		market.WithBaseURL(cfg.Market.BaseURL),
		market.WithQuoteAsset(cfg.Market.QuoteAsset),
		market.WithLimit(cfg.Engine.CandleLimit),
		market.WithRateLimiter(limiter),
		market.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(cfg.Engine.MarketTimeout))),
	)
	return market.NewCached(client, c, cfg.Market.CacheTTL, log)
}

// ProvideNewsSource creates the configured news provider behind the article cache.
func ProvideNewsSource(cfg *config.Config, limiter *ratelimit.Limiter, c cache.Service, log *applogger.Logger) repository.NewsSource {
	var src repository.NewsSource
	switch cfg.News.Provider {
	case "tavily":
		hc := xhttp.NewClient(xhttp.WithTimeout(cfg.Engine.NewsTimeout))
		src = news.NewTavily(cfg.News.TavilyURL, cfg.News.TavilyAPIKey, cfg.News.MaxArticles, hc, limiter)
	default:
		src = news.NewGoogleRSS(cfg.News.RSSURL, cfg.News.MaxArticles, limiter)
	}
	return news.NewCached(src, c, cfg.News.CacheTTL, log)
}

// ProvideInference creates the Gemini client. Without an API key live requests
// degrade instead of failing startup.
func ProvideInference(cfg *config.Config, limiter *ratelimit.Limiter, log *applogger.Logger) (repository.Inference, error) {
	if cfg.Gemini.APIKey == "" {
		log.Warn("gemini api key not set, live inference disabled")
		return inference.Disabled{}, nil
	}
	g, err := inference.NewGemini(context.Background(), cfg.Gemini.APIKey,
		inference.WithModel(cfg.Gemini.Model),
		inference.WithTemperature(cfg.Gemini.Temperature),
		inference.WithRateLimiter(limiter),
		inference.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return g, nil
}

// ProvideResultPublisher guards outcomes so each request id is published once.
func ProvideResultPublisher(
	cfg *config.Config,
	guard cache.Service,
	sink repository.OutcomeSink,
	audit repository.OutcomeAudit,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.ResultPublisher {
	return usecase.NewResultPublisher(guard, sink, audit, cfg.Gateway.PublishGuardTTL, m, log)
}

// ProvideAnalysisEngine pairs live collaborators with the deterministic fixtures used by mock requests.
func ProvideAnalysisEngine(
	cfg *config.Config,
	md repository.MarketData,
	ns repository.NewsSource,
	inf repository.Inference,
	publisher *usecase.ResultPublisher,
	m repository.Metrics,
	log *applogger.Logger,
) (*usecase.AnalysisEngine, error) {
	loc, err := time.LoadLocation(cfg.Report.Timezone)
	if err != nil {
		return nil, fmt.Errorf("report timezone: %w", err)
	}
	live := usecase.Collaborators{Market: md, News: ns, Inference: inf}
	mock := usecase.Collaborators{
		Market:    fixtures.NewMarket(),
		News:      fixtures.NewNews(),
		Inference: fixtures.NewInference(),
	}
	e := cfg.Engine
	return usecase.NewAnalysisEngine(live, mock,
		analysis.NewTechnicalNode(),
		analysis.NewSentimentNode(),
		publisher, m, log,
		usecase.EngineConfig{
			MarketTimeout:      e.MarketTimeout,
			NewsTimeout:        e.NewsTimeout,
			InferenceTimeout:   e.InferenceTimeout,
			AggregationRetries: e.AggregationRetries,
			PublishRetries:     e.PublishRetries,
			RetryBackoffMin:    e.RetryBackoffMin,
			RetryBackoffMax:    e.RetryBackoffMax,
			MaxParallelTokens:  e.MaxParallelTokens,
			Location:           loc,
		},
	), nil
}

// ProvideDispatcher bounds concurrent request execution.
func ProvideDispatcher(cfg *config.Config, engine *usecase.AnalysisEngine, publisher *usecase.ResultPublisher, m repository.Metrics, log *applogger.Logger) *usecase.Dispatcher {
	return usecase.NewDispatcher(engine, publisher, cfg.Gateway.MaxInFlight, m, log)
}

// ProvideAnalysisGateway admits requests from the request topic and the HTTP surface.
func ProvideAnalysisGateway(
	cfg *config.Config,
	dedup cache.Service,
	dispatcher *usecase.Dispatcher,
	publisher *usecase.ResultPublisher,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.AnalysisGateway {
	return usecase.NewAnalysisGateway(
		cfg.Kafka.RequestTopic,
		dedup,
		cfg.Gateway.DedupWindow,
		dispatcher,
		publisher,
		cfg.Gateway.DefaultCoins,
		m, log,
	)
}

// ProvideHTTPServer exposes the submission API, health and /metrics.
func ProvideHTTPServer(cfg *config.Config, gateway *usecase.AnalysisGateway, dispatcher *usecase.Dispatcher, log *applogger.Logger) *xhttp.Server {
	h := api.NewAnalysisEchoHandler(log, gateway, dispatcher)
	return xhttp.NewServer(log, h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetrics(cfg.Metrics.Enabled),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	consumer *pkgkafka.Consumer,
	gateway *usecase.AnalysisGateway,
	dispatcher *usecase.Dispatcher,
	httpServer *xhttp.Server,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	c cache.Service,
) *server.App {
	return server.New(cfg, log, consumer, gateway, dispatcher, httpServer, producer, chClient, c)
}
