package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Nodeflow/internal/domain"
)

func item() domain.QueueItem {
	return domain.QueueItem{
		ExecutionID: uuid.New(),
		WorkflowID:  uuid.New(),
		Attempt:     1,
		EnqueuedAt:  time.Now(),
	}
}

func TestMemoryEnqueueDequeue(t *testing.T) {
	q := NewMemory(4)
	defer q.Close()

	ctx := context.Background()
	first, second := item(), item()

	if err := q.Enqueue(ctx, first); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, second); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if q.Depth() != 2 {
		t.Errorf("Depth() = %d, ожидали 2", q.Depth())
	}

	// FIFO.
	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got.ExecutionID != first.ExecutionID {
		t.Errorf("Dequeue вернул %s, ожидали %s", got.ExecutionID, first.ExecutionID)
	}
}

func TestMemoryFull(t *testing.T) {
	q := NewMemory(1)
	defer q.Close()

	ctx := context.Background()
	if err := q.Enqueue(ctx, item()); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, item()); !errors.Is(err, ErrFull) {
		t.Errorf("Enqueue в заполненную очередь: err = %v, ожидали ErrFull", err)
	}
}

func TestMemoryDequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewMemory(4)
	defer q.Close()

	want := item()
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Enqueue(context.Background(), want)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got.ExecutionID != want.ExecutionID {
		t.Errorf("Dequeue вернул %s, ожидали %s", got.ExecutionID, want.ExecutionID)
	}
}

// Элемент с NextRunAt в будущем не выдаётся раньше срока.
func TestMemoryDelayedDelivery(t *testing.T) {
	q := NewMemory(4)
	defer q.Close()

	delayed := item()
	delayed.NextRunAt = time.Now().Add(50 * time.Millisecond)

	if err := q.Enqueue(context.Background(), delayed); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if q.Depth() != 0 {
		t.Errorf("Depth() = %d, отложенный элемент не должен быть готов", q.Depth())
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("элемент выдан через %v, раньше NextRunAt", elapsed)
	}
}

func TestMemoryClose(t *testing.T) {
	q := NewMemory(4)

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Dequeue после Close: err = %v, ожидали ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue не разблокировался после Close")
	}

	if err := q.Enqueue(context.Background(), item()); !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue после Close: err = %v, ожидали ErrClosed", err)
	}
}
