package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GeminiKeyEnv names the Gemini credential
const GeminiKeyEnv = "GEMINI_API_KEY"

type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a client for the Gemini Developer API.
func NewGeminiClient(ctx context.Context, apiKey, baseURL string, httpClient *http.Client) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is required")
	}

	cc := genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if strings.TrimSpace(baseURL) != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// GenerateText issues one GenerateContent call with the augmented
// instruction as system guidance.
func (c *GeminiClient) GenerateText(ctx context.Context, req Request) (string, error) {
	temp := req.Temperature
	cfg := genai.GenerateContentConfig{
		Temperature:       &temp,
		SystemInstruction: genai.Text(req.SystemInstruction)[0],
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Content), &cfg)
	if err != nil {
		return "", err
	}
	return geminiText(resp), nil
}

// geminiText joins the text parts of the first candidate
func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String())
}
