// Nodeflow Server — единый процесс движка автоматизации:
//
//   - HTTP API: webhook-приём, CRUD workflow, executions, статус
//   - Встроенный пул воркеров, выполняющий executions
//   - Cron-планировщик активных cron-workflow
//
// Очередь запусков — in-memory; если задан RABBITMQ_URL, очередь
// живёт в RabbitMQ и воркеров можно выносить в отдельные процессы
// (nodeflow-worker).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/Nodeflow/internal/api"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/mq"
	"github.com/shaiso/Nodeflow/internal/nodes"
	"github.com/shaiso/Nodeflow/internal/queue"
	"github.com/shaiso/Nodeflow/internal/store"
	"github.com/shaiso/Nodeflow/internal/telemetry"
	"github.com/shaiso/Nodeflow/internal/trigger"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting nodeflow-server")

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

	// Метрики
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	// Реестр типов узлов
	nodeRegistry := nodes.NewRegistry()
	nodeRegistry.RegisterDefaults()

	// Очередь запусков: RabbitMQ, если задан RABBITMQ_URL, иначе in-memory
	var runQueue queue.Queue
	if mqURL := os.Getenv("RABBITMQ_URL"); mqURL != "" {
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

		runQueue, err = mq.NewRunQueue(conn, logger)
		if err != nil {
			logger.Error("failed to create run queue", "error", err)
			os.Exit(1)
		}
		logger.Info("RabbitMQ connected", "url", mqURL)
	}

	// Движок
	eng, err := engine.New(engine.Params{
		Store:    st,
		Registry: nodeRegistry,
		Queue:    runQueue,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	// Встроенные воркеры (отключаются через EMBEDDED_WORKERS=false
	// при выносе обработки в nodeflow-worker)
	if os.Getenv("EMBEDDED_WORKERS") != "false" {
		if err := eng.StartWorker(ctx); err != nil {
			logger.Error("failed to start workers", "error", err)
			os.Exit(1)
		}
		defer eng.StopWorker()
	}

	// Cron-планировщик
	scheduler := trigger.NewCronScheduler(eng, st.Workflows, logger, 0)
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("failed to start cron scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	// HTTP API
	handler := api.NewHandler(api.Config{
		Engine:     eng,
		Workflows:  st.Workflows,
		Executions: st.Executions,
		Registry:   nodeRegistry,
		Logger:     logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, registry)

	addr := ":5678"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
