package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	queuePkg "github.com/jwebster45206/scene-engine/pkg/queue"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	redisURL := "redis://" + mr.Addr()

	client, err := NewClient(redisURL, logger)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create queue client: %v", err)
	}

	return client, mr
}

func TestSceneQueue_EnqueueAndDequeue(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewSceneQueue(client)
	ctx := context.Background()

	first := queuePkg.NewGenerateSceneRequest(uuid.New(), []string{"They argued about the map."})
	second := queuePkg.NewGenerateSceneRequest(uuid.New(), nil)
	for _, req := range []*queuePkg.Request{first, second} {
		if err := q.Enqueue(ctx, req); err != nil {
			t.Fatalf("Failed to enqueue request: %v", err)
		}
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Failed to get depth: %v", err)
	}
	if depth != 2 {
		t.Errorf("Expected depth 2, got %d", depth)
	}

	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if got.RequestID != first.RequestID {
		t.Errorf("Expected FIFO order, got request %s", got.RequestID)
	}
	if len(got.RelevantConversations) != 1 || got.RelevantConversations[0] != "They argued about the map." {
		t.Errorf("Conversations not preserved: %v", got.RelevantConversations)
	}

	got, err = q.BlockingDequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("Failed to blocking dequeue: %v", err)
	}
	if got == nil || got.StoryID != second.StoryID {
		t.Errorf("Expected second request, got %+v", got)
	}

	got, err = q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue on empty queue should not error: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil from empty queue, got %+v", got)
	}
}

func TestSceneQueue_BlockingDequeueCancelled(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewSceneQueue(client)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	got, err := q.BlockingDequeue(ctx, 5*time.Second)
	if err != nil {
		t.Fatalf("Expected no error when the context ends, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil request, got %+v", got)
	}
}

func TestSceneQueue_EnqueueRejectsInvalid(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewSceneQueue(client)
	if err := q.Enqueue(context.Background(), &queuePkg.Request{RequestID: "r1"}); err == nil {
		t.Error("Expected error for request without story")
	}
	if mr.Exists(RequestsKey) {
		t.Error("Invalid request should not be queued")
	}
}

func TestSceneQueue_MalformedEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	if _, err := mr.Lpush(RequestsKey, "{not json"); err != nil {
		t.Fatalf("Failed to seed queue: %v", err)
	}

	q := NewSceneQueue(client)
	if _, err := q.Dequeue(context.Background()); err == nil {
		t.Error("Expected parse error for malformed entry")
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	if _, err := NewClient("redis://127.0.0.1:1", logger); err == nil {
		t.Error("Expected connection error")
	}
	if _, err := NewClient("://bad", logger); err == nil {
		t.Error("Expected URL parse error")
	}
}
