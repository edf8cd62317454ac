package di

import (
	"context"
	"fmt"
	"time"

	domrepo "PVResonance/internal/domain/repository"
	"PVResonance/internal/handler/api"
	kafkahandler "PVResonance/internal/handler/kafka"
	internalrepo "PVResonance/internal/repository"
	"PVResonance/internal/service/ratelimit"
	"PVResonance/internal/usecase"
	"PVResonance/pkg/cache"
	pkgch "PVResonance/pkg/clickhouse"
	"PVResonance/pkg/config"
	xhttp "PVResonance/pkg/http"
	pkgkafka "PVResonance/pkg/kafka"
	applogger "PVResonance/pkg/logger"
	"PVResonance/pkg/metrics"
	"PVResonance/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideKafkaProducer creates the producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	k := cfg.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatch(k.Producer.BatchSize, k.Producer.BatchBytes, k.Producer.Linger),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger. With a producer, warnings and
// errors are also aggregated onto the audit topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if producer == nil || cfg.Kafka.AuditTopic == "" {
		return l, func() {}, nil
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   cfg.Audit.FlushInterval,
		CountThreshold: cfg.Audit.CountThreshold,
		Topic:          cfg.Kafka.AuditTopic,
		Publisher:      producer,
	})
	return l, l.RemoveCollector, nil
}

// ProvideClickHouseClient connects and creates the schema, or returns nil
// when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config, log *applogger.Logger) (*pkgch.Client, func(), error) {
	ch := cfg.ClickHouse
	if !ch.Enabled {
		log.Info("clickhouse disabled, reading CSV inputs", applogger.String("bars", cfg.Data.Bars))
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if ch.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.Schema(ch.Database)); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	log.Info("clickhouse connected", applogger.String("host", ch.Host), applogger.String("database", ch.Database))
	return client, func() { _ = client.Close() }, nil
}

func csvStore(cfg *config.Config) *internalrepo.CSVStore {
	return internalrepo.NewCSVStore(internalrepo.CSVFiles{
		Bars:    cfg.Data.Bars,
		Factors: cfg.Data.Factors,
		North:   cfg.Data.North,
		Quotes:  cfg.Data.Quotes,
	})
}

func ProvideBarStore(cfg *config.Config, ch *pkgch.Client, log *applogger.Logger) domrepo.BarStore {
	if ch == nil {
		return csvStore(cfg)
	}
	s := internalrepo.NewCHBarStore(ch, cfg.ClickHouse.Database)
	s.SetLogger(log)
	return s
}

func ProvideNorthFlowStore(cfg *config.Config, ch *pkgch.Client, log *applogger.Logger) domrepo.NorthFlowStore {
	if ch == nil {
		return csvStore(cfg)
	}
	s := internalrepo.NewCHBarStore(ch, cfg.ClickHouse.Database)
	s.SetLogger(log)
	return s
}

// ProvideRunStore returns nil without ClickHouse; runs then live in the cache.
func ProvideRunStore(cfg *config.Config, ch *pkgch.Client) domrepo.RunStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHRunStore(ch, cfg.ClickHouse.Database)
}

// ProvideSignalPublisher returns nil without Kafka. The producer is closed by
// its own provider.
func ProvideSignalPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.RunsTopic, cfg.Kafka.SignalsTopic)
}

// ProvideCache layers memory over Redis when Redis is enabled.
func ProvideCache(cfg *config.Config, log *applogger.Logger) (cache.Service, func(), error) {
	memOpts := []cache.MemoryOption{
		cache.WithMemoryMaxSize(cfg.Cache.MaxEntries),
		cache.WithMemoryCleanup(cfg.Cache.CleanupInterval),
		cache.WithMemoryDefaultTTL(cfg.Cache.TTL),
	}
	if !cfg.Redis.Enabled {
		c := cache.NewMemoryCache(memOpts...)
		return c, func() { _ = c.Close() }, nil
	}
	r := cfg.Redis
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(r.Addr),
		cache.WithRedisPassword(r.Password),
		cache.WithRedisDB(r.DB),
		cache.WithRedisPool(r.PoolSize, r.MinIdleConns, r.PoolTimeout),
		cache.WithRedisPrefix(r.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	log.Info("redis cache connected", applogger.String("addr", r.Addr))
	c := cache.NewLayeredCache(rc, memOpts...)
	return c, func() { _ = c.Close() }, nil
}

func ProvideMetrics() domrepo.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

func ProvideBacktestUseCase(
	bars domrepo.BarStore,
	north domrepo.NorthFlowStore,
	runs domrepo.RunStore,
	pub domrepo.SignalPublisher,
	c cache.Service,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.BacktestUseCase {
	return usecase.NewBacktestUseCase(bars, north, runs, pub, c, m, log)
}

func ProvideReportUseCase(runs domrepo.RunStore, c cache.Service, log *applogger.Logger) *usecase.ReportUseCase {
	return usecase.NewReportUseCase(runs, c, log)
}

// ProvideLimiter builds the per-address limiter of POST /api/backtest and
// prunes idle addresses every minute.
func ProvideLimiter(cfg *config.Config) (*ratelimit.Limiter, func()) {
	rl := cfg.Server.RateLimit
	l := ratelimit.New(rl.Burst, rl.PerSecond)
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				l.Prune(10 * time.Minute)
			case <-done:
				return
			}
		}
	}()
	return l, func() { close(done) }
}

func ProvideHTTPHandlers(
	log *applogger.Logger,
	bt *usecase.BacktestUseCase,
	rep *usecase.ReportUseCase,
	runs domrepo.RunStore,
	limiter *ratelimit.Limiter,
) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewBacktestHandler(log, bt, rep, runs, limiter),
		api.NewReportStreamHandler(log, rep),
	}
}

func ProvideHTTPServer(cfg *config.Config, log *applogger.Logger, handlers []xhttp.Handler) *xhttp.Server {
	s := cfg.Server
	return xhttp.NewServer(log, handlers,
		xhttp.WithHost(s.Host),
		xhttp.WithPort(s.Port),
		xhttp.WithTimeouts(s.ReadTimeout, s.WriteTimeout, s.ShutdownTimeout),
		xhttp.WithSlowThreshold(s.SlowThreshold),
		xhttp.WithCORS(s.CORSOrigins...),
	)
}

// ProvideKafkaConsumer returns nil unless Kafka is enabled with a request topic.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.RequestTopic == "" {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideRequestHandler(cfg *config.Config, bt *usecase.BacktestUseCase, log *applogger.Logger) pkgkafka.MessageHandler {
	if cfg.Kafka.RequestTopic == "" {
		return nil
	}
	return kafkahandler.NewBacktestRequestHandler(cfg.Kafka.RequestTopic, bt, log)
}

func ProvideApp(
	log *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	handler pkgkafka.MessageHandler,
) *server.App {
	return server.New(log, srv, consumer, handler)
}
