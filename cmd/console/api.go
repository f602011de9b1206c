package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/handlers"
)

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// doJSON sends body (if any) and decodes the response into out when the
// status matches want
func doJSON(client *http.Client, method, url string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody))
		}
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, errorResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func createStory(client *http.Client, baseURL string, req *handlers.CreateStoryRequest) (*handlers.StoryResponse, error) {
	var resp handlers.StoryResponse
	if err := doJSON(client, http.MethodPost, baseURL+"/v1/stories", req, http.StatusCreated, &resp); err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}
	return &resp, nil
}

func getStory(client *http.Client, baseURL string, storyID uuid.UUID) (*handlers.StoryResponse, error) {
	var resp handlers.StoryResponse
	if err := doJSON(client, http.MethodGet, fmt.Sprintf("%s/v1/stories/%s", baseURL, storyID), nil, http.StatusOK, &resp); err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return &resp, nil
}

func requestScene(client *http.Client, baseURL string, storyID uuid.UUID, conversations []string) (*handlers.GenerateSceneResponse, error) {
	body := handlers.GenerateSceneRequest{RelevantConversations: conversations}
	var resp handlers.GenerateSceneResponse
	if err := doJSON(client, http.MethodPost, fmt.Sprintf("%s/v1/stories/%s/scenes", baseURL, storyID), body, http.StatusAccepted, &resp); err != nil {
		return nil, fmt.Errorf("failed to request scene: %w", err)
	}
	return &resp, nil
}

// SSEEvent represents an event from the SSE stream
type SSEEvent struct {
	Type string
	Data json.RawMessage
}

// listenToSSE connects to the SSE endpoint and streams events to a channel
func listenToSSE(ctx context.Context, client *http.Client, baseURL string, storyID uuid.UUID, eventChan chan<- SSEEvent) error {
	url := fmt.Sprintf("%s/v1/events/stories/%s", baseURL, storyID.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}

	return readSSE(ctx, resp.Body, eventChan)
}

func readSSE(ctx context.Context, r io.Reader, eventChan chan<- SSEEvent) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var currentEvent SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			// Empty line signals end of event
			if currentEvent.Type != "" {
				select {
				case eventChan <- currentEvent:
				case <-ctx.Done():
					return ctx.Err()
				}
				currentEvent = SSEEvent{}
			}
			continue
		}

		// Parse SSE format; comment lines (keepalives) are skipped
		if strings.HasPrefix(line, "event: ") {
			currentEvent.Type = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			currentEvent.Data = json.RawMessage(strings.TrimPrefix(line, "data: "))
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}
