//go:build wireinject
// +build wireinject

package di

import (
	"FinScan/pkg/config"
	"FinScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories
		ProvideEventPublisher,
		ProvideAnomalyStore,
		ProvideLabelCache,

		// Pipeline stages
		ProvideLoader,
		ProvideScorer,
		ProvideWriter,
		ProvideRenderer,
		ProvidePipeline,

		// Transport
		ProvideRateLimiter,
		ProvideDetectHandler,
		ProvideHTTPServer,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
