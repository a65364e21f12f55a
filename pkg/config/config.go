package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // report.timezone must resolve on hosts without a zoneinfo db

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"TokenPulse/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level     string `yaml:"level"`
		Format    string `yaml:"format"`
		Output    string `yaml:"output"`
		Collector struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic"`
			Interval       time.Duration `yaml:"interval"`
			CountThreshold int           `yaml:"count_threshold"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Server struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORS            bool          `yaml:"cors"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequestTopic string   `yaml:"request_topic"`
		ResultTopic  string   `yaml:"result_topic"`
		Producer     struct {
			RequiredAcks     int           `yaml:"required_acks"`
			Compression      string        `yaml:"compression"`
			MaxAttempts      int           `yaml:"max_attempts"`
			BatchTimeout     time.Duration `yaml:"batch_timeout"`
			WriteTimeout     time.Duration `yaml:"write_timeout"`
			ReadTimeout      time.Duration `yaml:"read_timeout"`
			AutoCreateTopics bool          `yaml:"auto_create_topics"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID     string        `yaml:"group_id"`
			StartOffset string        `yaml:"start_offset"`
			Workers     int           `yaml:"workers"`
			BufferSize  int           `yaml:"buffer_size"`
			RetryMax    int           `yaml:"retry_max"`
			BackoffMin  time.Duration `yaml:"backoff_min"`
			BackoffMax  time.Duration `yaml:"backoff_max"`
			DLQTopic    string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Cache struct {
		Backend       string        `yaml:"backend"` // memory, redis or layered
		MemoryMaxSize int           `yaml:"memory_max_size"`
		MemoryTTL     time.Duration `yaml:"memory_ttl"`
		Redis         struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Gateway struct {
		DedupWindow     time.Duration `yaml:"dedup_window"`
		PublishGuardTTL time.Duration `yaml:"publish_guard_ttl"`
		MaxInFlight     int           `yaml:"max_in_flight"`
		DrainTimeout    time.Duration `yaml:"drain_timeout"`
		DefaultCoins    []string      `yaml:"default_coins"`
	} `yaml:"gateway"`
	Engine struct {
		MarketTimeout      time.Duration `yaml:"market_timeout"`
		NewsTimeout        time.Duration `yaml:"news_timeout"`
		InferenceTimeout   time.Duration `yaml:"inference_timeout"`
		AggregationRetries int           `yaml:"aggregation_retries"`
		PublishRetries     int           `yaml:"publish_retries"`
		RetryBackoffMin    time.Duration `yaml:"retry_backoff_min"`
		RetryBackoffMax    time.Duration `yaml:"retry_backoff_max"`
		MaxParallelTokens  int           `yaml:"max_parallel_tokens"`
		CandleLimit        int           `yaml:"candle_limit"`
	} `yaml:"engine"`
	Market struct {
		BaseURL        string        `yaml:"base_url"`
		QuoteAsset     string        `yaml:"quote_asset"`
		RequestsPerMin int           `yaml:"requests_per_min"`
		CacheTTL       time.Duration `yaml:"cache_ttl"`
	} `yaml:"market"`
	News struct {
		Provider       string        `yaml:"provider"` // rss or tavily
		RSSURL         string        `yaml:"rss_url"`
		TavilyURL      string        `yaml:"tavily_url"`
		TavilyAPIKey   string        `yaml:"tavily_api_key"`
		MaxArticles    int           `yaml:"max_articles"`
		RequestsPerMin int           `yaml:"requests_per_min"`
		CacheTTL       time.Duration `yaml:"cache_ttl"`
	} `yaml:"news"`
	Gemini struct {
		APIKey         string  `yaml:"api_key"`
		Model          string  `yaml:"model"`
		Temperature    float32 `yaml:"temperature"`
		RequestsPerMin int     `yaml:"requests_per_min"`
	} `yaml:"gemini"`
	Audit struct {
		Enabled    bool `yaml:"enabled"`
		ClickHouse struct {
			Host     string        `yaml:"host"`
			Port     int           `yaml:"port"`
			Database string        `yaml:"database"`
			User     string        `yaml:"user"`
			Password string        `yaml:"password"`
			Table    string        `yaml:"table"`
			Timeout  time.Duration `yaml:"timeout"`
		} `yaml:"clickhouse"`
	} `yaml:"audit"`
	Report struct {
		Timezone string `yaml:"timezone"`
	} `yaml:"report"`
}

// Load reads and parses a YAML configuration file, then applies defaults and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyEnv()
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("ANALYSIS_REQUEST_TOPIC"); v != "" {
		c.Kafka.RequestTopic = v
	}
	if v := os.Getenv("ANALYSIS_RESULT_TOPIC"); v != "" {
		c.Kafka.ResultTopic = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		c.News.TavilyAPIKey = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
	}
	c.Cache.Redis.Port = util.EnvInt("REDIS_PORT", c.Cache.Redis.Port)
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	c.Gateway.MaxInFlight = util.EnvInt("MAX_IN_FLIGHT", c.Gateway.MaxInFlight)
	c.Gateway.DrainTimeout = util.EnvDuration("DRAIN_TIMEOUT", c.Gateway.DrainTimeout)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ApplyDefaults fills zero values with working defaults.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	setStr(&c.Log.Level, "info")
	setStr(&c.Log.Format, "json")
	setStr(&c.Log.Output, "stdout")
	setStr(&c.Log.Collector.Topic, "tokenpulse.logs")
	setDur(&c.Log.Collector.Interval, 30*time.Second)
	setInt(&c.Log.Collector.CountThreshold, 100)

	setInt(&c.Server.Port, 8080)
	setDur(&c.Server.ReadTimeout, 10*time.Second)
	setDur(&c.Server.WriteTimeout, 10*time.Second)
	setDur(&c.Server.ShutdownTimeout, 15*time.Second)

	setStr(&c.Kafka.RequestTopic, "analysis.requests")
	setStr(&c.Kafka.ResultTopic, "analysis.results")
	if c.Kafka.Producer.RequiredAcks == 0 {
		c.Kafka.Producer.RequiredAcks = -1
	}
	setStr(&c.Kafka.Producer.Compression, "snappy")
	setInt(&c.Kafka.Producer.MaxAttempts, 3)
	setDur(&c.Kafka.Producer.BatchTimeout, 10*time.Millisecond)
	setDur(&c.Kafka.Producer.WriteTimeout, 10*time.Second)
	setDur(&c.Kafka.Producer.ReadTimeout, 10*time.Second)
	setStr(&c.Kafka.Consumer.GroupID, "tokenpulse")
	setStr(&c.Kafka.Consumer.StartOffset, "earliest")
	setInt(&c.Kafka.Consumer.Workers, 4)
	setInt(&c.Kafka.Consumer.BufferSize, 64)
	setInt(&c.Kafka.Consumer.RetryMax, 3)
	setDur(&c.Kafka.Consumer.BackoffMin, 100*time.Millisecond)
	setDur(&c.Kafka.Consumer.BackoffMax, 2*time.Second)

	setStr(&c.Cache.Backend, "memory")
	setInt(&c.Cache.MemoryMaxSize, 10000)
	setDur(&c.Cache.MemoryTTL, 30*time.Second)
	setStr(&c.Cache.Redis.Host, "localhost")
	setInt(&c.Cache.Redis.Port, 6379)
	setInt(&c.Cache.Redis.PoolSize, 10)
	setStr(&c.Cache.Redis.Prefix, "tokenpulse")

	setDur(&c.Gateway.DedupWindow, 10*time.Minute)
	setDur(&c.Gateway.PublishGuardTTL, 24*time.Hour)
	setInt(&c.Gateway.MaxInFlight, 8)
	setDur(&c.Gateway.DrainTimeout, 30*time.Second)
	if len(c.Gateway.DefaultCoins) == 0 {
		c.Gateway.DefaultCoins = []string{"BTC", "ETH", "SOL", "BNB", "XRP"}
	}

	setDur(&c.Engine.MarketTimeout, 10*time.Second)
	setDur(&c.Engine.NewsTimeout, 10*time.Second)
	setDur(&c.Engine.InferenceTimeout, 30*time.Second)
	setInt(&c.Engine.AggregationRetries, 3)
	setInt(&c.Engine.PublishRetries, 3)
	setDur(&c.Engine.RetryBackoffMin, 500*time.Millisecond)
	setDur(&c.Engine.RetryBackoffMax, 5*time.Second)
	setInt(&c.Engine.MaxParallelTokens, 5)
	setInt(&c.Engine.CandleLimit, 100)

	setStr(&c.Market.BaseURL, "https://api.binance.com")
	setStr(&c.Market.QuoteAsset, "USDT")
	setInt(&c.Market.RequestsPerMin, 600)
	setDur(&c.Market.CacheTTL, 30*time.Second)

	setStr(&c.News.Provider, "rss")
	setStr(&c.News.RSSURL, "https://news.google.com/rss/search")
	setStr(&c.News.TavilyURL, "https://api.tavily.com/search")
	setInt(&c.News.MaxArticles, 10)
	setInt(&c.News.RequestsPerMin, 60)
	setDur(&c.News.CacheTTL, 5*time.Minute)

	setStr(&c.Gemini.Model, "gemini-2.5-flash")
	if c.Gemini.Temperature == 0 {
		c.Gemini.Temperature = 0.3
	}
	setInt(&c.Gemini.RequestsPerMin, 30)

	setInt(&c.Audit.ClickHouse.Port, 9000)
	setStr(&c.Audit.ClickHouse.Database, "default")
	setStr(&c.Audit.ClickHouse.User, "default")
	setStr(&c.Audit.ClickHouse.Table, "analysis_outcomes")
	setDur(&c.Audit.ClickHouse.Timeout, 5*time.Second)

	setStr(&c.Report.Timezone, "UTC")
}

func setStr(p *string, v string) {
	if *p == "" {
		*p = v
	}
}

func setInt(p *int, v int) {
	if *p <= 0 {
		*p = v
	}
}

func setDur(p *time.Duration, v time.Duration) {
	if *p <= 0 {
		*p = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required")
	}
	if c.Kafka.RequestTopic == c.Kafka.ResultTopic {
		return fmt.Errorf("kafka.request_topic and kafka.result_topic must differ")
	}
	switch c.Cache.Backend {
	case "memory", "redis", "layered":
	default:
		return fmt.Errorf("cache.backend must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Backend)
	}
	switch c.News.Provider {
	case "rss":
	case "tavily":
		if c.News.TavilyAPIKey == "" {
			return fmt.Errorf("news.tavily_api_key is required for the tavily provider")
		}
	default:
		return fmt.Errorf("news.provider must be 'rss' or 'tavily', got '%s'", c.News.Provider)
	}
	if c.Engine.AggregationRetries < 1 {
		return fmt.Errorf("engine.aggregation_retries must be >= 1")
	}
	if c.Audit.Enabled && c.Audit.ClickHouse.Host == "" {
		return fmt.Errorf("audit.clickhouse.host is required when audit is enabled")
	}
	if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
		return fmt.Errorf("report.timezone: %w", err)
	}
	return nil
}
