package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/scene-engine/pkg/chat"
)

const (
	veniceBaseURL = "https://api.venice.ai/api/v1"

	DefaultVeniceTemperature = 0.7
	DefaultVeniceMaxTokens   = 2048
)

// VeniceService implements LLMService for Venice AI
type VeniceService struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
}

var _ LLMService = (*VeniceService)(nil)

type VeniceParameters struct {
	IncludeVeniceSystemPrompt bool   `json:"include_venice_system_prompt"`
	EnableWebSearch           string `json:"enable_web_search"`
}

// VeniceChatRequest is an OpenAI chat completion request plus Venice's
// provider parameters
type VeniceChatRequest struct {
	OpenAIChatRequest
	VeniceParameters VeniceParameters `json:"venice_parameters"`
}

// NewVeniceService creates a new Venice AI service
func NewVeniceService(apiKey string, modelName string) *VeniceService {
	return &VeniceService{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   veniceBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// SetBaseURL points the service at a different API host.
func (v *VeniceService) SetBaseURL(baseURL string) {
	v.baseURL = strings.TrimRight(baseURL, "/")
}

// InitModel initializes the model (Venice AI doesn't require explicit model initialization)
func (v *VeniceService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

func (v *VeniceService) Chat(ctx context.Context, req *chat.ChatRequest) (*chat.ChatResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	veniceReq := VeniceChatRequest{
		OpenAIChatRequest: buildOpenAIRequest(req, v.modelName, DefaultVeniceTemperature, DefaultVeniceMaxTokens),
		VeniceParameters: VeniceParameters{
			IncludeVeniceSystemPrompt: false,
			EnableWebSearch:           "off",
		},
	}

	resp, err := postChatCompletion(ctx, v.httpClient, v.baseURL+"/chat/completions", v.apiKey, veniceReq)
	if err != nil {
		return nil, err
	}
	return toChatResponse(resp), nil
}
