package di

import (
	"context"
	"fmt"

	"FinScan/internal/domain/repository"
	domsvc "FinScan/internal/domain/service"
	"FinScan/internal/handler/api"
	internalrepo "FinScan/internal/repository"
	"FinScan/internal/service/ratelimit"
	"FinScan/internal/services/analytics"
	"FinScan/internal/services/ingest"
	"FinScan/internal/services/report"
	"FinScan/internal/usecase"
	pkgcache "FinScan/pkg/cache"
	pkgch "FinScan/pkg/clickhouse"
	"FinScan/pkg/config"
	xhttp "FinScan/pkg/http"
	pkgkafka "FinScan/pkg/kafka"
	"FinScan/pkg/logger"
	"FinScan/pkg/metrics"
	"FinScan/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideRegistry creates the Prometheus registry every component registers on.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.NewWithRegistry(reg)
}

func ProvideLoader(cfg *config.Config, log *logger.Logger) *ingest.Loader {
	return ingest.NewLoader(
		ingest.WithDelimiter(cfg.Delimiter()),
		ingest.WithLogger(log),
	)
}

func ProvideScorer(cfg *config.Config, log *logger.Logger) (domsvc.Scorer, error) {
	return analytics.New(cfg, log)
}

func ProvideWriter(cfg *config.Config) *report.Writer {
	return report.NewWriter(cfg.Storage.ReportsDir)
}

func ProvideRenderer(cfg *config.Config) *report.Renderer {
	return report.NewRenderer(cfg.Storage.PlotsDir)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes run events to Kafka and ships aggregated
// error logs to the log topic. It returns nil when Kafka is disabled.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer, log *logger.Logger) repository.EventPublisher {
	if producer == nil {
		return nil
	}
	if cfg.Kafka.LogTopic != "" {
		log.AddCollector(&logger.CollectionConfig{
			Topic:     cfg.Kafka.LogTopic,
			Publisher: producer,
		})
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideAnomalyStore creates the anomalies table and returns the store, or
// nil when ClickHouse is disabled.
func ProvideAnomalyStore(cfg *config.Config, client *pkgch.Client, log *logger.Logger) (repository.AnomalyStore, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewCHAnomalyStore(client.DB(), cfg.ClickHouse.Database)
	store.SetLogger(log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ClickHouse.DialTimeout*2)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideCache creates the label cache backend: memory only, or memory in
// front of Redis. It returns nil when caching is disabled.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	if !cfg.Cache.Redis.Enabled {
		return pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)), nil
	}
	remote, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Cache.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		pkgcache.WithRedisPool(cfg.Cache.Redis.PoolSize, cfg.Cache.Redis.MinIdle, cfg.Cache.Redis.PoolTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(remote,
		pkgcache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
		pkgcache.WithLayeredMemoryTTL(cfg.Cache.TTL),
	), nil
}

func ProvideLabelCache(svc pkgcache.Service) repository.LabelCache {
	if svc == nil {
		return nil
	}
	return internalrepo.NewLabelCache(svc)
}

// ProvidePipeline assembles the detection pipeline with its optional sinks.
func ProvidePipeline(
	cfg *config.Config,
	loader *ingest.Loader,
	scorer domsvc.Scorer,
	writer *report.Writer,
	renderer *report.Renderer,
	rec *metrics.Recorder,
	events repository.EventPublisher,
	store repository.AnomalyStore,
	labels repository.LabelCache,
	log *logger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(
		usecase.PipelineConfig{
			Features:       cfg.Pipeline.Features,
			Contamination:  cfg.Pipeline.Contamination,
			Seed:           cfg.Pipeline.Seed,
			DeriveFeatures: cfg.Pipeline.DeriveFeatures,
			WriteLabeled:   cfg.Pipeline.WriteLabeled,
			CacheTTL:       cfg.Cache.TTL,
		},
		loader, scorer, writer, renderer,
		usecase.WithMetrics(rec),
		usecase.WithEventPublisher(events),
		usecase.WithAnomalyStore(store),
		usecase.WithLabelCache(labels),
		usecase.WithLogger(log),
	)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

func ProvideDetectHandler(cfg *config.Config, pipeline *usecase.Pipeline, limiter *ratelimit.Limiter, log *logger.Logger) *api.DetectEchoHandler {
	return api.NewDetectEchoHandler(log, pipeline, api.Dirs{
		Uploads:    cfg.Storage.UploadDir,
		Reports:    cfg.Storage.ReportsDir,
		Plots:      cfg.Storage.PlotsDir,
		SampleFile: cfg.Storage.SampleFile,
	}, limiter.Middleware())
}

// ProvideHTTPServer creates the API server. /healthz pings ClickHouse when
// the anomaly store is enabled.
func ProvideHTTPServer(
	cfg *config.Config,
	handler *api.DetectEchoHandler,
	store repository.AnomalyStore,
	reg *prometheus.Registry,
	log *logger.Logger,
) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithBodyLimit(cfg.Server.BodyLimit),
		xhttp.WithServerLogger(log),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg, reg))
	}
	if store != nil {
		opts = append(opts, xhttp.WithHealthCheck(store.Health))
	}
	return xhttp.NewServer(handler, opts...)
}

// ProvideApp creates the application and hands it every client to close.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	pipeline *usecase.Pipeline,
	httpServer *xhttp.Server,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	cacheSvc pkgcache.Service,
) *server.App {
	// closed in reverse order; the log collector publishes through the
	// producer so it drains before Kafka closes
	var closers []server.Closer
	if producer != nil {
		closers = append(closers, server.Closer{Name: "kafka", Close: producer.Close})
	}
	closers = append(closers, server.Closer{Name: "log collector", Close: func() error {
		log.RemoveCollector()
		return nil
	}})
	if chClient != nil {
		closers = append(closers, server.Closer{Name: "clickhouse", Close: chClient.Close})
	}
	if cacheSvc != nil {
		closers = append(closers, server.Closer{Name: "cache", Close: cacheSvc.Close})
	}
	return server.New(cfg, log, pipeline, httpServer, closers...)
}
