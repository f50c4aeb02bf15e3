package analyze

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-pro"

// GeminiSummarizer calls the Gemini API with bounded retry on
// transient failures.
type GeminiSummarizer struct {
	client     *genai.Client
	model      string
	maxRetries int
}

func NewGeminiSummarizer(ctx context.Context, apiKey, model string) (*GeminiSummarizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("analysis API key is required")
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiSummarizer{
		client:     client,
		model:      model,
		maxRetries: 3,
	}, nil
}

func (s *GeminiSummarizer) Generate(ctx context.Context, system, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.3),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<uint(attempt)) * time.Second
			if err := waitBackoff(ctx, wait); err != nil {
				return "", err
			}
		}
		resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, cfg)
		if err != nil {
			lastErr = err
			continue
		}
		text := resp.Text()
		if text == "" {
			lastErr = fmt.Errorf("empty model response")
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("generate failed after %d attempts: %w", s.maxRetries, lastErr)
}

// waitBackoff sleeps for d but returns early when ctx is cancelled.
func waitBackoff(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
