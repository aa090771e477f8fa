package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient invokes Gemini models through the Google GenAI API.
type GeminiClient struct {
	client  *genai.Client
	timeout time.Duration
	logger  *zap.Logger

	// Paces requests so bursts of parallel batches don't trip the
	// per-minute quota before the server-side limiter does.
	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

// NewGeminiClient creates a Gemini client. The timeout bounds each
// individual request; retry policy lives with the caller.
func NewGeminiClient(ctx context.Context, apiKey string, timeout time.Duration, logger *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required (set GEMINI_API_KEY)")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		timeout:     timeout,
		logger:      logger,
		minInterval: 600 * time.Millisecond,
	}, nil
}

// Invoke sends one prompt and returns the model's text reply. Failures
// come back classified as *InvokeError.
func (c *GeminiClient) Invoke(ctx context.Context, prompt string, cfg InvokeConfig) (string, error) {
	if cfg.Model == "" {
		return "", NewInvokeError(KindFatal, errors.New("no model name configured"))
	}

	c.pace()

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(cfg.Temperature),
	}
	if cfg.MaxOutputTokens > 0 {
		genCfg.MaxOutputTokens = cfg.MaxOutputTokens
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(reqCtx, cfg.Model, genai.Text(prompt), genCfg)
	if err != nil {
		classified := classify(err)
		c.logger.Warn("model request failed",
			zap.String("model", cfg.Model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(classified))
		return "", classified
	}

	text := resp.Text()
	if text == "" {
		return "", NewInvokeError(KindTransient, errors.New("empty response from model"))
	}

	c.logger.Debug("model request completed",
		zap.String("model", cfg.Model),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("reply_chars", len(text)),
		zap.Duration("elapsed", time.Since(start)))
	return text, nil
}

func (c *GeminiClient) pace() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if since := time.Since(c.lastRequest); since < c.minInterval {
		time.Sleep(c.minInterval - since)
	}
	c.lastRequest = time.Now()
}

// classify maps transport and API errors onto the failure taxonomy.
func classify(err error) *InvokeError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewInvokeError(KindTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewInvokeError(KindFatal, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return NewInvokeError(KindRateLimited, err)
		case apiErr.Code >= 500:
			return NewInvokeError(KindTransient, err)
		case apiErr.Code >= 400:
			return NewInvokeError(KindFatal, err)
		}
	}

	// Network hiccups and everything else unclassified: worth one more try.
	return NewInvokeError(KindTransient, err)
}
