package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// cronParser — парсер cron-выражений (5 полей, без секунд).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// NextCronTime возвращает следующее срабатывание выражения после from.
func NextCronTime(expr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return schedule.Next(from), nil
}

// Dispatcher — часть движка, нужная планировщику: постановка запуска.
type Dispatcher interface {
	TriggerWorkflow(ctx context.Context, workflowID uuid.UUID, kind domain.TriggerKind, payload domain.Item) (*domain.Execution, error)
}

// WorkflowSource — источник активных cron-workflow.
type WorkflowSource interface {
	ListActiveByTriggerKind(ctx context.Context, kind domain.TriggerKind) ([]*domain.Workflow, error)
}

// defaultSyncInterval — период пересинхронизации расписания с БД.
const defaultSyncInterval = 30 * time.Second

// CronScheduler синтезирует запуски workflow по cron-расписанию.
//
// Расписание ведётся библиотекой robfig/cron; набор записей
// периодически синхронизируется с активными cron-workflow в хранилище:
// новые добавляются, изменённые перепланируются, выключенные убираются.
type CronScheduler struct {
	dispatcher Dispatcher
	source     WorkflowSource
	logger     *slog.Logger
	interval   time.Duration

	cron *cron.Cron

	mu      sync.Mutex
	entries map[uuid.UUID]cronEntry

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// cronEntry — запланированный workflow.
type cronEntry struct {
	id   cron.EntryID
	expr string
}

// NewCronScheduler создаёт планировщик.
func NewCronScheduler(dispatcher Dispatcher, source WorkflowSource, logger *slog.Logger, syncInterval time.Duration) *CronScheduler {
	if syncInterval <= 0 {
		syncInterval = defaultSyncInterval
	}
	return &CronScheduler{
		dispatcher: dispatcher,
		source:     source,
		logger:     logger,
		interval:   syncInterval,
		cron:       cron.New(cron.WithParser(cronParser)),
		entries:    make(map[uuid.UUID]cronEntry),
	}
}

// Start запускает планировщик и цикл синхронизации.
func (s *CronScheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	if err := s.Sync(ctx); err != nil {
		s.logger.Error("initial cron sync failed", "error", err)
	}
	s.cron.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Sync(ctx); err != nil {
					s.logger.Error("cron sync failed", "error", err)
				}
			}
		}
	}()

	s.logger.Info("cron scheduler started", "sync_interval", s.interval)
	return nil
}

// Stop останавливает планировщик, дожидаясь выполняющихся jobs.
func (s *CronScheduler) Stop() {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("cron scheduler stopped")
}

// Sync приводит расписание в соответствие с хранилищем.
func (s *CronScheduler) Sync(ctx context.Context) error {
	workflows, err := s.source.ListActiveByTriggerKind(ctx, domain.TriggerCron)
	if err != nil {
		return fmt.Errorf("list cron workflows: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uuid.UUID]bool, len(workflows))
	for _, wf := range workflows {
		seen[wf.ID] = true

		expr := wf.Trigger.CronExpr
		if entry, ok := s.entries[wf.ID]; ok {
			if entry.expr == expr {
				continue
			}
			// Выражение изменилось: перепланируем.
			s.cron.Remove(entry.id)
			delete(s.entries, wf.ID)
		}

		id, err := s.cron.AddFunc(expr, s.job(wf.ID))
		if err != nil {
			s.logger.Error("failed to schedule workflow",
				"workflow_id", wf.ID, "cron_expr", expr, "error", err)
			continue
		}
		s.entries[wf.ID] = cronEntry{id: id, expr: expr}
		s.logger.Info("workflow scheduled", "workflow_id", wf.ID, "cron_expr", expr)
	}

	// Убираем выключенные и удалённые workflow.
	for wfID, entry := range s.entries {
		if !seen[wfID] {
			s.cron.Remove(entry.id)
			delete(s.entries, wfID)
			s.logger.Info("workflow unscheduled", "workflow_id", wfID)
		}
	}

	return nil
}

// Scheduled возвращает количество запланированных workflow.
func (s *CronScheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// job возвращает функцию запуска workflow по расписанию.
func (s *CronScheduler) job(workflowID uuid.UUID) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		payload := domain.Item{"fired_at": time.Now().UTC().Format(time.RFC3339)}
		exec, err := s.dispatcher.TriggerWorkflow(ctx, workflowID, domain.TriggerCron, payload)
		if err != nil {
			s.logger.Error("cron dispatch failed", "workflow_id", workflowID, "error", err)
			return
		}
		s.logger.Info("cron execution dispatched",
			"workflow_id", workflowID, "execution_id", exec.ID)
	}
}
