package llm

import (
    "context"
    "net/http"
    "strings"

    openai "github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is the OpenAI-compatible endpoint of the hosted Gemini API.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// Client is the minimal interface needed by core logic to call a chat model.
// It mirrors CreateChatCompletion so that any OpenAI-compatible or local
// backend can be adapted.
type Client interface {
    CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider adapts *openai.Client to the Client interface.
type OpenAIProvider struct {
    Inner *openai.Client
}

// NewOpenAIProvider builds a provider for an OpenAI-compatible endpoint.
// An empty baseURL selects DefaultBaseURL; hc may be nil.
func NewOpenAIProvider(baseURL string, apiKey string, hc *http.Client) *OpenAIProvider {
    cfg := openai.DefaultConfig(apiKey)
    if strings.TrimSpace(baseURL) == "" {
        baseURL = DefaultBaseURL
    }
    cfg.BaseURL = strings.TrimRight(baseURL, "/")
    if hc != nil {
        cfg.HTTPClient = hc
    }
    return &OpenAIProvider{Inner: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
    return p.Inner.CreateChatCompletion(ctx, request)
}
