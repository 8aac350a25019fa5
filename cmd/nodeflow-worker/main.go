// Nodeflow Worker — отдельный процесс обработки executions.
//
// Worker:
//   - Забирает executions из очереди RabbitMQ
//   - Выполняет граф workflow батчами
//   - Реализует retry узлов и run-level retry с backoff
//   - Останавливается с graceful drain (прерванные запуски
//     возвращаются в PENDING и подхватываются после рестарта)
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/mq"
	"github.com/shaiso/Nodeflow/internal/store"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting nodeflow-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := store.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := store.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	st := store.New(pool)

	// RabbitMQ — для отдельного воркера очередь обязательна
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	conn, err := mq.Dial(mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := mq.SetupTopology(conn); err != nil {
		logger.Error("failed to setup RabbitMQ topology", "error", err)
		os.Exit(1)
	}

	runQueue, err := mq.NewRunQueue(conn, logger)
	if err != nil {
		logger.Error("failed to create run queue", "error", err)
		os.Exit(1)
	}
	logger.Info("RabbitMQ connected", "url", mqURL)

	// Метрики
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	// Движок: здесь используется только пул воркеров
	eng, err := engine.New(engine.Params{
		Store:   st,
		Queue:   runQueue,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	if err := eng.StartWorker(ctx); err != nil {
		logger.Error("failed to start workers", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	port := ":5679"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем воркеров (graceful drain)
	eng.StopWorker()
	logger.Info("nodeflow-worker stopped")
}
