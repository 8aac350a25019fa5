package trigger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/store"
)

// ErrBadSecret — секрет webhook не подошёл.
var ErrBadSecret = errors.New("webhook secret mismatch")

// HashSecret хэширует секрет webhook для хранения в TriggerConfig.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash webhook secret: %w", err)
	}
	return string(hash), nil
}

// VerifySecret сверяет секрет с bcrypt-хэшем.
func VerifySecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// AuthorizeWebhook проверяет секрет входящего webhook-запроса.
// Workflow без хэша секрета принимает запросы без аутентификации.
func AuthorizeWebhook(wf *domain.Workflow, secret string) error {
	if wf.Trigger.WebhookSecretHash == "" {
		return nil
	}
	if !VerifySecret(wf.Trigger.WebhookSecretHash, secret) {
		return ErrBadSecret
	}
	return nil
}

// WebhookWorkflows — часть хранилища, нужная для резолва webhook.
type WebhookWorkflows interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
	GetByWebhookPath(ctx context.Context, path string) (*domain.Workflow, error)
}

// ResolveWebhook находит workflow по сегменту пути /webhook/{path}.
//
// Сначала ищется активный workflow с совпадающим webhook path;
// если не найден, а сегмент — валидный UUID, workflow ищется по ID
// (webhook path по умолчанию — ID workflow).
func ResolveWebhook(ctx context.Context, workflows WebhookWorkflows, pathOrID string) (*domain.Workflow, error) {
	wf, err := workflows.GetByWebhookPath(ctx, pathOrID)
	if err == nil {
		return wf, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	id, parseErr := uuid.Parse(pathOrID)
	if parseErr != nil {
		return nil, store.ErrNotFound
	}
	return workflows.GetByID(ctx, id)
}
