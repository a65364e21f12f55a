//go:build wireinject
// +build wireinject

package di

import (
	"TokenPulse/pkg/config"
	"TokenPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaConsumer,

		// Repositories
		ProvideOutcomeSink,
		ProvideOutcomeAudit,

		// Collaborators
		ProvideRateLimiter,
		ProvideMarketData,
		ProvideNewsSource,
		ProvideInference,

		// Use cases
		ProvideResultPublisher,
		ProvideAnalysisEngine,
		ProvideDispatcher,
		ProvideAnalysisGateway,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
