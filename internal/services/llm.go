package services

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jwebster45206/scene-engine/pkg/chat"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// LLMService defines the interface for interacting with the LLM API
type LLMService interface {
	// InitModel initializes the LLM model on startup
	InitModel(ctx context.Context, modelName string) error

	// Chat sends a completion request, optionally offering tools
	Chat(ctx context.Context, req *chat.ChatRequest) (*chat.ChatResponse, error)
}

// TimeoutLLM bounds every Chat call with its own deadline and classifies
// failures as scene errors so they can be reflected to the planner.
type TimeoutLLM struct {
	next    LLMService
	timeout time.Duration
}

var _ LLMService = (*TimeoutLLM)(nil)

// WithTimeout wraps an LLMService with a per-call timeout.
func WithTimeout(next LLMService, timeout time.Duration) *TimeoutLLM {
	return &TimeoutLLM{next: next, timeout: timeout}
}

func (t *TimeoutLLM) InitModel(ctx context.Context, modelName string) error {
	return t.next.InitModel(ctx, modelName)
}

func (t *TimeoutLLM) Chat(ctx context.Context, req *chat.ChatRequest) (*chat.ChatResponse, error) {
	callCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	resp, err := t.next.Chat(callCtx, req)
	if err != nil {
		return nil, ClassifyLLMError(ctx, err)
	}
	return resp, nil
}

// ClassifyLLMError maps an LLM failure to a scene error. ctx is the caller's
// context, not the per-call one, so a caller cancellation is distinguished
// from a call deadline.
func ClassifyLLMError(ctx context.Context, err error) error {
	var se *scene.Error
	if errors.As(err, &se) {
		return err
	}
	if ctx.Err() != nil {
		return scene.Wrap(scene.KindCancelled, "llm call cancelled", ctx.Err())
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return scene.Wrap(scene.KindLLMTimeout, "llm call timed out", err)
	}
	return scene.Wrap(scene.KindLLMFailed, "llm call failed", err)
}
