package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema — DDL хранилища. Идемпотентна: применяется при каждом старте.
const schema = `
CREATE TABLE IF NOT EXISTS workflows (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	is_active   BOOLEAN NOT NULL DEFAULT FALSE,
	nodes       JSONB NOT NULL DEFAULT '[]',
	connections JSONB NOT NULL DEFAULT '[]',
	trigger     JSONB NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_workflows_webhook_path
	ON workflows ((trigger->>'webhook_path'))
	WHERE is_active;

CREATE INDEX IF NOT EXISTS idx_workflows_trigger_kind
	ON workflows ((trigger->>'kind'))
	WHERE is_active;

CREATE TABLE IF NOT EXISTS executions (
	id               UUID PRIMARY KEY,
	workflow_id      UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
	trigger_kind     TEXT NOT NULL,
	status           TEXT NOT NULL,
	node_outputs     JSONB NOT NULL DEFAULT '{}',
	attempt          INTEGER NOT NULL DEFAULT 0,
	error            JSONB,
	cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
	started_at       TIMESTAMPTZ,
	finished_at      TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_executions_workflow
	ON executions (workflow_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_executions_pending
	ON executions (created_at)
	WHERE status = 'PENDING';
`

// EnsureSchema создаёт таблицы и индексы, если их нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
