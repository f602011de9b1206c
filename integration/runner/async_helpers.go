package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/agent"
	"github.com/jwebster45206/scene-engine/internal/services/events"
)

const (
	// ConnectTimeout is max time to wait for the SSE "connected" event
	ConnectTimeout = 10 * time.Second
)

// OpenEventStream subscribes to a story's events. The channel closes when
// the stream ends or ctx is done.
func OpenEventStream(ctx context.Context, baseURL string, storyID uuid.UUID) (<-chan Event, error) {
	url := fmt.Sprintf("%s/v1/events/stories/%s", baseURL, storyID.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create events request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout: the stream lives as long as ctx
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("events endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	out := make(chan Event, 32)
	go func() {
		defer close(out)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var current Event
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if current.Type != "" {
					select {
					case out <- current:
					case <-ctx.Done():
						return
					}
				}
				current = Event{}
			case strings.HasPrefix(line, "event: "):
				current.Type = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				current.Data = json.RawMessage(strings.TrimPrefix(line, "data: "))
			}
		}
	}()
	return out, nil
}

// WaitForEvent reads until an event of the given type arrives. Every type
// seen on the way is appended to seen.
func WaitForEvent(ctx context.Context, stream <-chan Event, eventType string, timeout time.Duration, seen *[]string) (Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-timer.C:
			return Event{}, fmt.Errorf("timed out after %v waiting for %s", timeout, eventType)
		case ev, ok := <-stream:
			if !ok {
				return Event{}, fmt.Errorf("event stream closed while waiting for %s", eventType)
			}
			*seen = append(*seen, ev.Type)
			if ev.Type == eventType {
				return ev, nil
			}
			if err := failure(ev); err != nil {
				return Event{}, err
			}
		}
	}
}

// failure turns error-carrying events into errors
func failure(ev Event) error {
	switch agent.EventType(ev.Type) {
	case agent.EventError:
		var p agent.ErrorPayload
		_ = json.Unmarshal(ev.Data, &p)
		return fmt.Errorf("generation error: %s", p.Message)
	case events.EventTypeRequestFailed:
		var p events.RequestPayload
		_ = json.Unmarshal(ev.Data, &p)
		return fmt.Errorf("request failed: %s", p.Error)
	}
	return nil
}
