package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/handlers"
)

type ConsoleConfig struct {
	APIBaseURL string
	Timeout    time.Duration
}

// conversationFlags collects repeated -conversation values
type conversationFlags []string

func (c *conversationFlags) String() string { return strings.Join(*c, " | ") }

func (c *conversationFlags) Set(v string) error {
	*c = append(*c, v)
	return nil
}

func main() {
	var conversations conversationFlags
	flag.Var(&conversations, "conversation", "relevant conversation excerpt passed to the planner (repeatable)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: console [flags] <story.json | story-uuid>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		Timeout:    30 * time.Second,
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
	}

	if !testConnection(client, cfg.APIBaseURL) {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	story, err := loadStory(client, cfg.APIBaseURL, flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// The SSE stream has no client timeout
	streamClient := &http.Client{}

	p := tea.NewProgram(NewConsoleUI(cfg, client, streamClient, story, conversations),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// loadStory fetches an existing story by id, or registers the story
// described by a JSON file
func loadStory(client *http.Client, baseURL, arg string) (*handlers.StoryResponse, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return getStory(client, baseURL, id)
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to read story file: %w", err)
	}
	var req handlers.CreateStoryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse story file %s: %w", arg, err)
	}
	return createStory(client, baseURL, &req)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
