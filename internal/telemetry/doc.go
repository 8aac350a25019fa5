// Package telemetry — логирование (slog) и метрики (Prometheus).
package telemetry
