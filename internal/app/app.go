// Package app собирает процесс order-relay: postgres-хранилище с миграциями,
// HTTP-сервер метрик и health-проверок и outbox worker, публикующий события
// заказов в Kafka.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/config"
	healthcheck "github.com/vladislavdragonenkov/ordercore/internal/health"
	"github.com/vladislavdragonenkov/ordercore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordercore/internal/service/outbox"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/postgres"
	"github.com/vladislavdragonenkov/ordercore/internal/version"
)

// Run запускает процесс и блокируется до отмены ctx или фатальной ошибки.
func Run(ctx context.Context, cfg config.Config) error {
	logger := log.WithField("component", "app")
	logger.Info(version.String())

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	if err := store.MigrateUp(ctx, 0); err != nil {
		return err
	}
	logger.Info("миграции применены")

	outboxRepo := postgres.NewOutboxRepository(store)

	// HTTP Health checks
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return store.Ping(pingCtx)
	}))

	httpSrv := startHTTPServer(ctx, cfg.HTTPAddr, logger, healthHandler)

	// Инициализация Kafka producer (опционально)
	var kafkaProducer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			kafkaProducer = producer
			logger.WithField("brokers", cfg.Kafka.Brokers).Info("kafka producer initialized")
		}
	}

	errCh := make(chan error, 1)
	if kafkaProducer != nil {
		topic := cfg.Kafka.Topic
		if topic == "" {
			topic = kafka.TopicOrderEvents
		}
		dlqTopic := cfg.Kafka.DLQTopic
		if dlqTopic == "" {
			dlqTopic = kafka.TopicDeadLetterQueue
		}

		worker := outbox.NewWorker(
			outboxRepo,
			kafka.NewOutboxPublisher(kafkaProducer, topic),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(kafkaProducer, dlqTopic)),
			outbox.WithPollInterval(cfg.Outbox.PollInterval),
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
			outbox.WithMaxAttempts(cfg.Outbox.MaxAttempts),
		)
		go func() {
			worker.Run(ctx)
			errCh <- nil
		}()
	} else {
		logger.Warn("kafka не настроен, outbox worker не запущен")
		go func() {
			<-ctx.Done()
			errCh <- nil
		}()
	}

	<-errCh
	logger.Info("получен сигнал остановки, останавливаем relay")
	shutdownHTTP(httpSrv, logger)

	// Закрываем Kafka producer
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			logger.Info("kafka producer closed")
		}
	}

	return ctx.Err()
}

// startHTTPServer запускает HTTP-обработчики /metrics и health-проверок.
func startHTTPServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
