package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
environment: test
kafka:
  brokers: ["localhost:9092"]
gateway:
  max_in_flight: 2
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "analysis.requests", c.Kafka.RequestTopic)
	assert.Equal(t, "analysis.results", c.Kafka.ResultTopic)
	assert.Equal(t, 2, c.Gateway.MaxInFlight)
	assert.Equal(t, 5, c.Engine.MaxParallelTokens)
	assert.Equal(t, 10*time.Minute, c.Gateway.DedupWindow)
	assert.Equal(t, []string{"BTC", "ETH", "SOL", "BNB", "XRP"}, c.Gateway.DefaultCoins)
	assert.Equal(t, "memory", c.Cache.Backend)
	assert.Equal(t, "rss", c.News.Provider)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ANALYSIS_RESULT_TOPIC", "custom.results")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("MAX_IN_FLIGHT", "16")

	c, err := LoadWithEnv(writeConfig(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "custom.results", c.Kafka.ResultTopic)
	assert.Equal(t, "secret", c.Gemini.APIKey)
	assert.Equal(t, 16, c.Gateway.MaxInFlight)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"no brokers":    "environment: test\n",
		"same topics":   "kafka:\n  brokers: [\"b:9092\"]\n  request_topic: x\n  result_topic: x\n",
		"bad backend":   minimal + "cache:\n  backend: disk\n",
		"tavily no key": minimal + "news:\n  provider: tavily\n",
		"audit no host": minimal + "audit:\n  enabled: true\n",
		"bad timezone":  minimal + "report:\n  timezone: Mars/Olympus\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadSampleConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "analysis.requests", c.Kafka.RequestTopic)
	assert.Equal(t, "analysis.results", c.Kafka.ResultTopic)
	assert.Equal(t, "rss", c.News.Provider)
	assert.Equal(t, 3, c.Engine.AggregationRetries)
	assert.Equal(t, 30*time.Second, c.Gateway.DrainTimeout)
	assert.Equal(t, "Asia/Ho_Chi_Minh", c.Report.Timezone)
	assert.False(t, c.Audit.Enabled)
}
