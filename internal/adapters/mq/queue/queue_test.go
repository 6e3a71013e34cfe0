package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okian/drowsywatch/internal/domain/model"
)

func snap(frames int) model.Snapshot {
	return model.Snapshot{SessionID: "s", Frames: frames}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, snap(1)) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.Frames != 1 {
		t.Errorf("expected frame 1, got %d", got.Frames)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_DropsWhenFull(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, snap(1)) || !q.Enqueue(ctx, snap(2)) {
		t.Fatal("expected first two enqueues to succeed")
	}
	if q.Enqueue(ctx, snap(3)) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_PreservesOrder(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 1; i <= 5; i++ {
		q.Enqueue(ctx, snap(i))
	}
	_ = q.Close()

	want := 1
	for s := range q.Dequeue(ctx) {
		if s.Frames != want {
			t.Fatalf("expected frame %d, got %d", want, s.Frames)
		}
		want++
	}
	if want != 6 {
		t.Errorf("expected 5 snapshots, got %d", want-1)
	}
}

func TestInMemoryQueue_ConcurrentProducers(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1000))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.Enqueue(ctx, snap(j))
			}
		}()
	}
	wg.Wait()

	if l := q.Len(ctx); l != 500 {
		t.Errorf("expected 500 queued snapshots, got %d", l)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	if q.IsClosed() {
		t.Error("new queue should not be closed")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if q.Enqueue(ctx, snap(1)) {
		t.Error("expected enqueue on closed queue to fail")
	}
	if _, ok := <-q.Dequeue(ctx); ok {
		t.Error("expected dequeue channel to be closed")
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx, cancel := context.WithCancel(context.Background())
	q.Enqueue(context.Background(), snap(1))
	cancel()

	if q.Enqueue(ctx, snap(2)) {
		t.Error("expected enqueue to fail on a full queue with cancelled context")
	}

	select {
	case _, ok := <-q.Dequeue(ctx):
		_ = ok
	case <-time.After(time.Second):
		t.Error("dequeue channel should close once ctx is done")
	}
}
