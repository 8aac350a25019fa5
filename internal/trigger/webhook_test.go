package trigger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/store"
)

func TestWebhookSecret(t *testing.T) {
	hash, err := HashSecret("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("secret stored in plain text")
	}
	if !VerifySecret(hash, "s3cret") {
		t.Error("correct secret rejected")
	}
	if VerifySecret(hash, "wrong") {
		t.Error("wrong secret accepted")
	}
}

func TestAuthorizeWebhook(t *testing.T) {
	hash, err := HashSecret("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	open := &domain.Workflow{Trigger: domain.TriggerConfig{Kind: domain.TriggerWebhook}}
	if err := AuthorizeWebhook(open, ""); err != nil {
		t.Errorf("workflow without secret rejected: %v", err)
	}

	protected := &domain.Workflow{Trigger: domain.TriggerConfig{
		Kind:              domain.TriggerWebhook,
		WebhookSecretHash: hash,
	}}
	if err := AuthorizeWebhook(protected, "s3cret"); err != nil {
		t.Errorf("correct secret rejected: %v", err)
	}
	if err := AuthorizeWebhook(protected, "wrong"); !errors.Is(err, ErrBadSecret) {
		t.Errorf("wrong secret: err = %v, want ErrBadSecret", err)
	}
	if err := AuthorizeWebhook(protected, ""); !errors.Is(err, ErrBadSecret) {
		t.Errorf("empty secret: err = %v, want ErrBadSecret", err)
	}
}

// --- ResolveWebhook ---

type fakeWebhookWorkflows struct {
	byPath map[string]*domain.Workflow
	byID   map[uuid.UUID]*domain.Workflow
}

func (f *fakeWebhookWorkflows) GetByWebhookPath(_ context.Context, path string) (*domain.Workflow, error) {
	if wf, ok := f.byPath[path]; ok {
		return wf, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeWebhookWorkflows) GetByID(_ context.Context, id uuid.UUID) (*domain.Workflow, error) {
	if wf, ok := f.byID[id]; ok {
		return wf, nil
	}
	return nil, store.ErrNotFound
}

func TestResolveWebhook(t *testing.T) {
	byPath := &domain.Workflow{ID: uuid.New(), Name: "by-path"}
	byID := &domain.Workflow{ID: uuid.New(), Name: "by-id"}

	workflows := &fakeWebhookWorkflows{
		byPath: map[string]*domain.Workflow{"orders": byPath},
		byID:   map[uuid.UUID]*domain.Workflow{byID.ID: byID},
	}
	ctx := context.Background()

	wf, err := ResolveWebhook(ctx, workflows, "orders")
	if err != nil {
		t.Fatalf("resolve by path: %v", err)
	}
	if wf.Name != "by-path" {
		t.Errorf("resolved %q, want by-path", wf.Name)
	}

	wf, err = ResolveWebhook(ctx, workflows, byID.ID.String())
	if err != nil {
		t.Fatalf("resolve by id: %v", err)
	}
	if wf.Name != "by-id" {
		t.Errorf("resolved %q, want by-id", wf.Name)
	}

	if _, err := ResolveWebhook(ctx, workflows, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing path: err = %v, want ErrNotFound", err)
	}
	if _, err := ResolveWebhook(ctx, workflows, uuid.NewString()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}
}
