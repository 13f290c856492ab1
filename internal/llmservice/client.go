package llmservice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"file-qa/internal/config"
	"file-qa/internal/models"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// Client talks to an OpenAI compatible chat completion API (Groq by default)
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewClient builds a chat client. apiKey overrides the key in cfg when set.
func NewClient(cfg *config.LLMConfig, apiKey string) (*Client, error) {
	if apiKey == "" {
		apiKey = cfg.Key
	}
	apiKey = strings.TrimSpace(strings.TrimPrefix(apiKey, "Bearer "))
	if apiKey == "" {
		return nil, models.ErrNoCredential
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	log.Debug().Str("base_url", clientConfig.BaseURL).Str("model", cfg.Model).Msg("Creating chat client")

	// go-openai omits a zero temperature from the request
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: temperature,
	}, nil
}

// GenerateContent sends prompt as a single user message and returns the first choice
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", models.ErrService)
	}

	log.Debug().Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).Msg("Chat completion done")
	return resp.Choices[0].Message.Content, nil
}

// ValidateKey lists the available models; any successful response means the key works
func (c *Client) ValidateKey(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return classifyError(err)
	}
	return nil
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func classifyError(err error) error {
	switch statusCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %v", models.ErrInvalidCredential, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w: %v", models.ErrService, models.ErrRateLimited, err)
	default:
		return fmt.Errorf("%w: %v", models.ErrService, err)
	}
}
