package render

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jwebster45206/scene-engine/pkg/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeComfy serves /prompt, /history and /view. The history lists the output
// only after readyAfter polls.
func fakeComfy(t *testing.T, readyAfter int32) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	var polls atomic.Int32
	submitted := map[string]interface{}{}

	mux := http.NewServeMux()
	mux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
		_, _ = w.Write([]byte(`{"prompt_id": "p-1", "number": 1}`))
	})
	mux.HandleFunc("/history/p-1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) <= readyAfter {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"p-1": {"outputs": {"9": {"images": [{"filename": "location_x.png", "subfolder": "", "type": "output"}]}}}}`))
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "location_x.png", r.URL.Query().Get("filename"))
		assert.Equal(t, "output", r.URL.Query().Get("type"))
		_, _ = w.Write([]byte("PNGDATA"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &submitted
}

func newTestComfy(t *testing.T, apiURL string) (*ComfyUIRenderer, string) {
	t.Helper()
	media := t.TempDir()
	r, err := NewComfyUIRenderer(ComfyUIConfig{
		APIURL:       apiURL,
		WorkflowsDir: t.TempDir(),
		MediaRoot:    media,
		MediaURL:     "/media/",
		BackendURL:   "http://backend:8000/",
		PollInterval: 5 * time.Millisecond,
	}, testLogger())
	require.NoError(t, err)
	return r, media
}

func TestComfyUIRenderer_Render(t *testing.T) {
	server, submitted := fakeComfy(t, 2)
	r, media := newTestComfy(t, server.URL)

	url, err := r.Render(context.Background(), KindLocation, "a misty harbor")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "http://backend:8000/media/comfyui/"), url)
	assert.True(t, strings.HasSuffix(url, "_location_x.png"), url)

	file := filepath.Join(media, "comfyui", filepath.Base(url))
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))

	assert.Equal(t, r.clientID, (*submitted)["client_id"])
	prompt, ok := (*submitted)["prompt"].(map[string]interface{})
	require.True(t, ok)
	node := prompt["6"].(map[string]interface{})["inputs"].(map[string]interface{})
	assert.Equal(t, "a misty harbor", node["text"])
}

func TestComfyUIRenderer_Timeout(t *testing.T) {
	server, _ := fakeComfy(t, 1<<30)
	r, _ := newTestComfy(t, server.URL)

	_, err := WithTimeout(r, 40*time.Millisecond).Render(context.Background(), KindCharacter, "p")
	assert.True(t, errors.Is(err, scene.ErrRenderTimeout), "got %v", err)
}

func TestComfyUIRenderer_RateLimitPastDeadline(t *testing.T) {
	server, _ := fakeComfy(t, 0)
	r, _ := newTestComfy(t, server.URL)
	r.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	_, err := WithTimeout(r, time.Second).Render(context.Background(), KindLocation, "first")
	require.NoError(t, err)

	// the second slot is an hour away, well past the render timeout
	start := time.Now()
	_, err = WithTimeout(r, 50*time.Millisecond).Render(context.Background(), KindLocation, "second")
	assert.True(t, errors.Is(err, scene.ErrRenderTimeout), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestComfyUIRenderer_BackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of memory", http.StatusInternalServerError)
	}))
	defer server.Close()
	r, _ := newTestComfy(t, server.URL)

	_, err := WithTimeout(r, time.Second).Render(context.Background(), KindCharacter, "p")
	assert.True(t, errors.Is(err, scene.ErrRenderFailed), "got %v", err)
}

func TestComfyUIRenderer_Cancelled(t *testing.T) {
	server, _ := fakeComfy(t, 1<<30)
	r, _ := newTestComfy(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := WithTimeout(r, time.Minute).Render(ctx, KindLocation, "p")
	assert.True(t, errors.Is(err, scene.ErrCancelled), "got %v", err)
}

func TestNewComfyUIRenderer_RequiresURL(t *testing.T) {
	_, err := NewComfyUIRenderer(ComfyUIConfig{MediaRoot: t.TempDir()}, testLogger())
	assert.Error(t, err)
}

func TestStaticRenderer(t *testing.T) {
	r := NewStaticRenderer("http://localhost:8080/", "/media")

	url, err := r.Render(context.Background(), KindCharacter, "ignored")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/placeholders/character.png", url)

	_, err = r.Render(context.Background(), Kind("other"), "p")
	assert.Error(t, err)
}

func TestMockRenderer(t *testing.T) {
	m := NewMockRenderer()
	url, err := m.Render(context.Background(), KindLocation, "p")
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.Equal(t, 1, m.CallCount())

	m.SetError(errors.New("gpu on fire"))
	_, err = WithTimeout(m, time.Second).Render(context.Background(), KindLocation, "p")
	assert.True(t, errors.Is(err, scene.ErrRenderFailed))
}
