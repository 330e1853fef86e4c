package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

type GeminiClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// GeminiClient generates text through the Gemini developer API.
type GeminiClient struct {
	client     *genai.Client
	timeout    time.Duration
	maxRetries int
}

func NewGeminiClient(ctx context.Context, config GeminiClientConfig) (*GeminiClient, error) {
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey == "" {
		return &GeminiClient{timeout: config.Timeout, maxRetries: config.MaxRetries}, nil
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: config.HTTPClient,
	}
	if base := strings.TrimSpace(config.BaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{
		client:     client,
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
	}, nil
}

func (c *GeminiClient) Available() bool {
	return c != nil && c.client != nil
}

func (c *GeminiClient) Generate(ctx context.Context, request GenerateRequest) (GenerateResult, error) {
	if !c.Available() {
		return GenerateResult{}, ErrProviderUnavailable
	}
	if err := validateRequest(request); err != nil {
		return GenerateResult{}, err
	}

	temperature := float32(request.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(request.MaxOutputTokens),
	}
	if instructions := strings.TrimSpace(request.Instructions); instructions != "" {
		config.SystemInstruction = genai.NewContentFromText(instructions, genai.RoleUser)
	}

	return withRetries(ctx, "gemini", c.maxRetries, func(ctx context.Context) (GenerateResult, error) {
		timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		response, err := c.client.Models.GenerateContent(timeoutCtx, request.Model, genai.Text(request.Input), config)
		if err != nil {
			if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
				return GenerateResult{}, fmt.Errorf("gemini timeout: %w", err)
			}
			return GenerateResult{}, fmt.Errorf("gemini generate: %w", err)
		}

		text := strings.TrimSpace(response.Text())
		if text == "" {
			return GenerateResult{}, errors.New("gemini response without text output")
		}

		result := GenerateResult{
			Text:    text,
			ModelID: firstNonEmpty(response.ModelVersion, request.Model),
		}
		if usage := response.UsageMetadata; usage != nil {
			result.Usage = TokenUsage{
				InputTokens:  int(usage.PromptTokenCount),
				OutputTokens: int(usage.CandidatesTokenCount),
				TotalTokens:  int(usage.TotalTokenCount),
			}
		}
		return result, nil
	})
}
