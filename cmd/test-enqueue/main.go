package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/services/events"
	"github.com/jwebster45206/scene-engine/internal/services/queue"
	pkgqueue "github.com/jwebster45206/scene-engine/pkg/queue"
)

// Enqueues a scene request directly, bypassing the API
// Usage: test-enqueue <story-uuid> [conversation...]
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <story-uuid> [conversation...]", os.Args[0])
	}
	storyID, err := uuid.Parse(os.Args[1])
	if err != nil {
		log.Fatal("Invalid story ID:", err)
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := queue.NewClient(redisURL, logger)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer client.Close()

	fmt.Println("Connected to Redis successfully!")

	ctx := context.Background()
	sceneQueue := queue.NewSceneQueue(client)

	req := pkgqueue.NewGenerateSceneRequest(storyID, os.Args[2:])
	if err := sceneQueue.Enqueue(ctx, req); err != nil {
		log.Fatal("Failed to enqueue request:", err)
	}
	if err := events.NewBroadcaster(client.GetRedisClient(), logger).PublishRequestQueued(ctx, storyID, req.RequestID); err != nil {
		log.Println("Failed to publish queued event:", err)
	}

	fmt.Printf("✅ Enqueued scene request: %s\n", req.RequestID)

	depth, err := sceneQueue.Depth(ctx)
	if err != nil {
		log.Fatal("Failed to get queue depth:", err)
	}

	fmt.Printf("\n📊 Queue depth: %d requests\n", depth)
	fmt.Println("\n💡 Now start the worker to see it process this request!")
	fmt.Println("   Run: go run cmd/worker/main.go")
}
