package render

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// Kind selects the workflow an image is rendered with
type Kind string

const (
	KindCharacter Kind = "character"
	KindLocation  Kind = "location"
)

// Renderer turns an image prompt into a publicly reachable image URL
type Renderer interface {
	Render(ctx context.Context, kind Kind, prompt string) (string, error)
}

// TimeoutRenderer bounds every render with its own deadline and classifies
// failures as scene errors.
type TimeoutRenderer struct {
	next    Renderer
	timeout time.Duration
}

var _ Renderer = (*TimeoutRenderer)(nil)

// WithTimeout wraps a Renderer with a per-call timeout.
func WithTimeout(next Renderer, timeout time.Duration) *TimeoutRenderer {
	return &TimeoutRenderer{next: next, timeout: timeout}
}

func (t *TimeoutRenderer) Render(ctx context.Context, kind Kind, prompt string) (string, error) {
	callCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	url, err := t.next.Render(callCtx, kind, prompt)
	if err != nil {
		return "", ClassifyRenderError(ctx, err)
	}
	return url, nil
}

// ClassifyRenderError maps a render failure to a scene error. ctx is the
// caller's context.
func ClassifyRenderError(ctx context.Context, err error) error {
	var se *scene.Error
	if errors.As(err, &se) {
		return err
	}
	if ctx.Err() != nil {
		return scene.Wrap(scene.KindCancelled, "render cancelled", ctx.Err())
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return scene.Wrap(scene.KindRenderTimeout, "render timed out", err)
	}
	return scene.Wrap(scene.KindRenderFailed, "render failed", err)
}
