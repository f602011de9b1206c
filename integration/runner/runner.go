package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/agent"
	"github.com/jwebster45206/scene-engine/internal/handlers"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// Runner executes integration cases against a running scene-engine API
// and worker
type Runner struct {
	BaseURL string
	Client  *http.Client
	// Timeout bounds one full scene generation
	Timeout time.Duration
	Logger  func(format string, args ...interface{})
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{Timeout: 60 * time.Second},
		Timeout: 5 * time.Minute,
	}
}

// LoadTestCase loads a case from a JSON file
func LoadTestCase(filename string) (TestCase, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestCase{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var tc TestCase
	if err := json.Unmarshal(content, &tc); err != nil {
		return TestCase{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}
	if tc.Name == "" {
		tc.Name = strings.TrimSuffix(filename, ".json")
	}
	return tc, nil
}

func (r *Runner) logf(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger(format, args...)
	}
}

// RunCase registers the story, follows its event stream, requests a scene
// and checks the expectations against the stored scene
func (r *Runner) RunCase(ctx context.Context, tc TestCase) TestResult {
	start := time.Now()
	result := TestResult{Name: tc.Name}
	result.Error = r.runCase(ctx, tc, &result)
	result.Duration = time.Since(start)
	return result
}

func (r *Runner) runCase(ctx context.Context, tc TestCase, result *TestResult) error {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var created handlers.StoryResponse
	if err := r.do(ctx, http.MethodPost, "/v1/stories", tc.Story, http.StatusCreated, &created); err != nil {
		return fmt.Errorf("create story: %w", err)
	}
	result.StoryID = created.Story.ID
	r.logf("   story %s created", result.StoryID)

	stream, err := OpenEventStream(ctx, r.BaseURL, result.StoryID)
	if err != nil {
		return err
	}
	if _, err := WaitForEvent(ctx, stream, "connected", ConnectTimeout, &result.Events); err != nil {
		return err
	}

	var queued handlers.GenerateSceneResponse
	body := handlers.GenerateSceneRequest{RelevantConversations: tc.RelevantConversations}
	if err := r.do(ctx, http.MethodPost, fmt.Sprintf("/v1/stories/%s/scenes", result.StoryID), body, http.StatusAccepted, &queued); err != nil {
		return fmt.Errorf("request scene: %w", err)
	}
	r.logf("   request %s queued", queued.RequestID)

	done, err := WaitForEvent(ctx, stream, string(agent.EventSceneComplete), r.Timeout, &result.Events)
	if err != nil {
		return err
	}
	var complete agent.SceneCompletePayload
	if err := json.Unmarshal(done.Data, &complete); err != nil {
		return fmt.Errorf("decode scene_complete: %w", err)
	}
	result.SceneID = complete.SceneID

	var stored scene.Scene
	if err := r.do(ctx, http.MethodGet, "/v1/scenes/"+complete.SceneID.String(), nil, http.StatusOK, &stored); err != nil {
		return fmt.Errorf("get scene: %w", err)
	}
	if err := check(tc.Expectations, &stored, result.Events); err != nil {
		return err
	}

	if tc.Expectations.CompleteScene {
		var closed scene.Scene
		summary := map[string]string{"summary": "Integration run finished."}
		if err := r.do(ctx, http.MethodPost, "/v1/scenes/"+complete.SceneID.String()+"/complete", summary, http.StatusOK, &closed); err != nil {
			return fmt.Errorf("complete scene: %w", err)
		}
		if closed.Status != scene.StatusCompleted {
			return fmt.Errorf("expected scene completed, got %s", closed.Status)
		}
	}
	return nil
}

func check(exp Expectations, s *scene.Scene, seen []string) error {
	var errs []string
	if s.Status != scene.StatusActive {
		errs = append(errs, fmt.Sprintf("status is %s, expected active", s.Status))
	}
	if s.LocationID == uuid.Nil {
		errs = append(errs, "scene has no location")
	}
	n := len(s.CharacterIDs)
	if n == 0 {
		errs = append(errs, "scene has no characters")
	}
	if exp.MinCharacters != nil && n < *exp.MinCharacters {
		errs = append(errs, fmt.Sprintf("expected at least %d characters, got %d", *exp.MinCharacters, n))
	}
	if exp.MaxCharacters != nil && n > *exp.MaxCharacters {
		errs = append(errs, fmt.Sprintf("expected at most %d characters, got %d", *exp.MaxCharacters, n))
	}
	if exp.DescriptionMinLength != nil && len(s.Description) < *exp.DescriptionMinLength {
		errs = append(errs, fmt.Sprintf("description is %d chars, expected at least %d", len(s.Description), *exp.DescriptionMinLength))
	}
	lower := strings.ToLower(s.Description)
	for _, want := range exp.DescriptionContains {
		if !strings.Contains(lower, strings.ToLower(want)) {
			errs = append(errs, fmt.Sprintf("description does not mention %q", want))
		}
	}
	for _, want := range exp.Events {
		if !slices.Contains(seen, want) {
			errs = append(errs, fmt.Sprintf("event %s never arrived", want))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("expectations failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (r *Runner) do(ctx context.Context, method, path string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%s %s returned %d (expected %d): %s", method, path, resp.StatusCode, want, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
