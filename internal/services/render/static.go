package render

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// StaticRenderer returns a fixed placeholder image per kind. Useful when no
// ComfyUI server is available.
type StaticRenderer struct {
	baseURL string
}

var _ Renderer = (*StaticRenderer)(nil)

func NewStaticRenderer(backendURL, mediaURL string) *StaticRenderer {
	if !strings.HasSuffix(mediaURL, "/") {
		mediaURL += "/"
	}
	return &StaticRenderer{baseURL: strings.TrimRight(backendURL, "/") + mediaURL}
}

func (s *StaticRenderer) Render(ctx context.Context, kind Kind, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch kind {
	case KindCharacter, KindLocation:
		return s.baseURL + "placeholders/" + string(kind) + ".png", nil
	}
	return "", fmt.Errorf("unknown render kind %q", kind)
}

// MockRenderer is a mock implementation of Renderer for testing
type MockRenderer struct {
	RenderFunc func(ctx context.Context, kind Kind, prompt string) (string, error)

	// Track calls for testing
	Calls []RenderCall

	mu sync.Mutex
}

var _ Renderer = (*MockRenderer)(nil)

type RenderCall struct {
	Kind   Kind
	Prompt string
}

func NewMockRenderer() *MockRenderer {
	return &MockRenderer{}
}

func (m *MockRenderer) Render(ctx context.Context, kind Kind, prompt string) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, RenderCall{Kind: kind, Prompt: prompt})
	fn := m.RenderFunc
	n := len(m.Calls)
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, kind, prompt)
	}
	return fmt.Sprintf("http://localhost/media/comfyui/%s_%d.png", kind, n), nil
}

// SetError makes every render fail with err
func (m *MockRenderer) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RenderFunc = func(ctx context.Context, kind Kind, prompt string) (string, error) {
		return "", err
	}
}

// CallCount returns the number of Render calls so far
func (m *MockRenderer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
