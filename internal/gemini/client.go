// Package gemini implements the greeting text generator on Google's Gemini
// API. Callers always guard Greet with a fixed fallback string, so errors
// from here never reach an end user directly.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/pontebot/internal/config"
)

// Client generates greeting text.
type Client interface {
	// Greet produces a short personalized welcome for name in language.
	Greet(ctx context.Context, name, language string) (string, error)
}

type sdkClient struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	maxRetries    int
	retryDelay    time.Duration
	timeout       time.Duration
}

// NewClient creates a Gemini client from the given configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.Temperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized", "model", cfg.Model)
	return &sdkClient{
		genaiClient:   gi,
		log:           logger,
		contentConfig: baseCfg,
		modelName:     cfg.Model,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    cfg.RetryDelay,
		timeout:       cfg.Timeout,
	}, nil
}

func (c *sdkClient) Greet(ctx context.Context, name, language string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := fmt.Sprintf(WelcomePromptTemplate, name, language)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, contents)
	if err != nil {
		return "", err
	}
	return c.extractTextFromResponse(ctx, resp)
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, c.contentConfig)
		if err == nil {
			return resp, nil
		}

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) {
			if i < c.maxRetries {
				c.log.WarnContext(ctx, "Gemini API call failed, retrying",
					"attempt", i+1, "max_retries", c.maxRetries, "code", apiErr.Code, "delay", c.retryDelay)
				select {
				case <-time.After(c.retryDelay):
				case <-ctx.Done():
					return nil, fmt.Errorf("gemini API call cancelled: %w", ctx.Err())
				}
				continue
			}
			return nil, fmt.Errorf("gemini API call failed after %d retries (code %d): %w", c.maxRetries, apiErr.Code, err)
		}

		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return nil, err
}

func (c *sdkClient) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		c.log.WarnContext(ctx, "Gemini response contained no candidates")
		return "", fmt.Errorf("empty gemini response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("gemini response contained no text")
	}
	return text, nil
}
