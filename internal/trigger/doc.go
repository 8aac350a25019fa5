// Package trigger — источники запусков workflow: cron-планировщик
// и вспомогательные операции webhook (резолв пути, секреты).
package trigger
