package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultPollInterval = 2 * time.Second
	outputSubdir        = "comfyui"
)

// ComfyUIConfig holds the settings the ComfyUI renderer needs
type ComfyUIConfig struct {
	APIURL       string
	WorkflowsDir string
	MediaRoot    string
	MediaURL     string
	BackendURL   string

	// RateInterval is the minimum spacing between submitted prompts
	RateInterval time.Duration
	PollInterval time.Duration
}

// ComfyUIRenderer renders images by queueing workflows on a ComfyUI server
// and polling its history until the output appears.
type ComfyUIRenderer struct {
	cfg        ComfyUIConfig
	clientID   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

var _ Renderer = (*ComfyUIRenderer)(nil)

type queueResponse struct {
	PromptID string `json:"prompt_id"`
}

type outputImage struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type historyEntry struct {
	Outputs map[string]struct {
		Images []outputImage `json:"images"`
	} `json:"outputs"`
}

// NewComfyUIRenderer creates a renderer and makes sure the media directory exists
func NewComfyUIRenderer(cfg ComfyUIConfig, logger *slog.Logger) (*ComfyUIRenderer, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("comfyui api url is required")
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if err := os.MkdirAll(filepath.Join(cfg.MediaRoot, outputSubdir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	limit := rate.Inf
	if cfg.RateInterval > 0 {
		limit = rate.Every(cfg.RateInterval)
	}

	return &ComfyUIRenderer{
		cfg:      cfg,
		clientID: uuid.NewString(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}, nil
}

func (c *ComfyUIRenderer) Render(ctx context.Context, kind Kind, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			// the next slot opens after the render deadline
			return "", fmt.Errorf("waiting for render slot: %w: %w", context.DeadlineExceeded, err)
		}
		return "", fmt.Errorf("waiting for render slot: %w", err)
	}

	wf, err := LoadWorkflow(c.cfg.WorkflowsDir, kind)
	if err != nil {
		return "", err
	}
	generationID := uuid.NewString()[:8]

	c.mu.Lock()
	seed := wf.Customize(kind, prompt, generationID, c.rng)
	c.mu.Unlock()

	promptID, err := c.queuePrompt(ctx, wf)
	if err != nil {
		return "", err
	}
	c.logger.Info("Render queued", "kind", kind, "prompt_id", promptID, "seed", seed)

	img, err := c.waitForImage(ctx, promptID)
	if err != nil {
		return "", err
	}

	data, err := c.fetchImage(ctx, img)
	if err != nil {
		return "", err
	}

	filename := generationID + "_" + filepath.Base(img.Filename)
	path := filepath.Join(c.cfg.MediaRoot, outputSubdir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}

	c.logger.Info("Render complete", "kind", kind, "prompt_id", promptID, "file", filename)
	return c.publicURL(filename), nil
}

func (c *ComfyUIRenderer) publicURL(filename string) string {
	mediaURL := c.cfg.MediaURL
	if !strings.HasSuffix(mediaURL, "/") {
		mediaURL += "/"
	}
	return strings.TrimRight(c.cfg.BackendURL, "/") + mediaURL + outputSubdir + "/" + filename
}

func (c *ComfyUIRenderer) queuePrompt(ctx context.Context, wf Workflow) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"prompt":    wf,
		"client_id": c.clientID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to queue prompt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("comfyui rejected prompt with status %d: %s", resp.StatusCode, string(respBody))
	}

	var qr queueResponse
	if err := json.Unmarshal(respBody, &qr); err != nil {
		return "", fmt.Errorf("failed to parse queue response: %w", err)
	}
	if qr.PromptID == "" {
		return "", fmt.Errorf("comfyui returned no prompt id")
	}
	return qr.PromptID, nil
}

// waitForImage polls the prompt history until an output image is listed or
// ctx ends.
func (c *ComfyUIRenderer) waitForImage(ctx context.Context, promptID string) (*outputImage, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		entry, err := c.history(ctx, promptID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("Failed to read render history", "prompt_id", promptID, "error", err)
		}
		if entry != nil && len(entry.Outputs) > 0 {
			for _, out := range entry.Outputs {
				if len(out.Images) > 0 && out.Images[0].Filename != "" {
					img := out.Images[0]
					return &img, nil
				}
			}
			return nil, fmt.Errorf("render %s finished without images", promptID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *ComfyUIRenderer) history(ctx context.Context, promptID string) (*historyEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+"/history/"+url.PathEscape(promptID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history request failed with status %d", resp.StatusCode)
	}

	var history map[string]historyEntry
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	entry, ok := history[promptID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *ComfyUIRenderer) fetchImage(ctx context.Context, img *outputImage) ([]byte, error) {
	q := url.Values{}
	q.Set("filename", img.Filename)
	q.Set("subfolder", img.Subfolder)
	q.Set("type", img.Type)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+"/view?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download failed with status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("comfyui returned an empty image")
	}
	return data, nil
}
