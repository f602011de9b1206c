package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/scene-engine/pkg/chat"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	msgNoResponse = "(no response)"

	DefaultOpenAITemperature = 0.7
	DefaultOpenAIMaxTokens   = 2048
)

// OpenAIService implements LLMService for the OpenAI chat completions API
// and compatible hosts.
type OpenAIService struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
}

var _ LLMService = (*OpenAIService)(nil)

type OpenAIFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type OpenAITool struct {
	Type     string         `json:"type"`
	Function OpenAIFunction `json:"function"`
}

type OpenAIResponseFormat struct {
	Type string `json:"type"`
}

// OpenAIChatRequest represents the request structure for chat completions
type OpenAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []chat.ChatMessage    `json:"messages"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Stream         bool                  `json:"stream"`
	Tools          []OpenAITool          `json:"tools,omitempty"`
	ResponseFormat *OpenAIResponseFormat `json:"response_format,omitempty"`
}

type OpenAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// OpenAIChatChoice represents a single choice in the response
type OpenAIChatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role      string           `json:"role"`
		Content   string           `json:"content"`
		ToolCalls []OpenAIToolCall `json:"tool_calls,omitempty"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// OpenAIChatResponse represents the response structure for chat completions
type OpenAIChatResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []OpenAIChatChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewOpenAIService creates a service for the given base URL. An empty base
// URL selects api.openai.com.
func NewOpenAIService(apiKey string, modelName string, baseURL string) *OpenAIService {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return &OpenAIService{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (o *OpenAIService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

func (o *OpenAIService) Chat(ctx context.Context, req *chat.ChatRequest) (*chat.ChatResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body := buildOpenAIRequest(req, o.modelName, DefaultOpenAITemperature, DefaultOpenAIMaxTokens)
	resp, err := postChatCompletion(ctx, o.httpClient, o.baseURL+"/chat/completions", o.apiKey, body)
	if err != nil {
		return nil, err
	}
	return toChatResponse(resp), nil
}

func buildOpenAIRequest(req *chat.ChatRequest, defaultModel string, defaultTemp float64, maxTokens int) OpenAIChatRequest {
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	temperature := defaultTemp
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	out := OpenAIChatRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, OpenAITool{
			Type: "function",
			Function: OpenAIFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	if req.JSONOutput && len(req.Tools) == 0 {
		out.ResponseFormat = &OpenAIResponseFormat{Type: "json_object"}
	}
	return out
}

// postChatCompletion sends any JSON body to an OpenAI-compatible endpoint.
func postChatCompletion(ctx context.Context, client *http.Client, url, apiKey string, payload interface{}) (*OpenAIChatResponse, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var out OpenAIChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if out.Error != nil {
		return nil, fmt.Errorf("API error: %s", out.Error.Message)
	}
	return &out, nil
}

func toChatResponse(resp *OpenAIChatResponse) *chat.ChatResponse {
	out := &chat.ChatResponse{Model: resp.Model}
	if len(resp.Choices) == 0 {
		out.Message = msgNoResponse
		return out
	}

	msg := resp.Choices[0].Message
	out.Message = msg.Content
	for _, tc := range msg.ToolCalls {
		var args json.RawMessage
		if tc.Function.Arguments != "" {
			args = json.RawMessage(tc.Function.Arguments)
		}
		if args != nil && !json.Valid(args) {
			// Keep the raw text so the planner sees the decode failure.
			args, _ = json.Marshal(tc.Function.Arguments)
		}
		out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out
}
