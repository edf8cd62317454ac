//go:build wireinject
// +build wireinject

package di

import (
	"PVResonance/pkg/config"
	"PVResonance/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideClickHouseClient,
		ProvideCache,
		ProvideMetrics,

		// Repositories
		ProvideBarStore,
		ProvideNorthFlowStore,
		ProvideRunStore,
		ProvideSignalPublisher,

		// Use cases
		ProvideBacktestUseCase,
		ProvideReportUseCase,

		// Transport
		ProvideLimiter,
		ProvideHTTPHandlers,
		ProvideHTTPServer,
		ProvideKafkaConsumer,
		ProvideRequestHandler,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
