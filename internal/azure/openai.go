package azure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"go.uber.org/zap"
)

// OpenAIClient is the Azure OpenAI chat client behind the reminder composer
type OpenAIClient struct {
	client     *openai.Client
	deployment string
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
}

// NewOpenAIClient builds a client for one Azure deployment
func NewOpenAIClient(endpoint, apiKey, deployment string, logger *zap.Logger) (*OpenAIClient, error) {
	if endpoint == "" || apiKey == "" || deployment == "" {
		return nil, fmt.Errorf("endpoint, apiKey, and deployment are required")
	}

	client := openai.NewClient(
		azure.WithEndpoint(endpoint, "2024-08-01-preview"),
		azure.WithAPIKey(apiKey),
	)

	return &OpenAIClient{
		client:     &client,
		deployment: deployment,
		logger:     logger,
		maxRetries: 3,
		baseDelay:  time.Second,
	}, nil
}

// Chat sends a system and a user message and returns the assistant reply
func (c *OpenAIClient) Chat(ctx context.Context, system, user string) (string, error) {
	return c.Complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage(user),
	})
}

// Complete sends a chat completion request, backing off between retryable failures
func (c *OpenAIClient) Complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	var (
		err      error
		attempts int
	)
	for attempts < c.maxRetries {
		if attempts > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("failed to complete chat: %w", ctx.Err())
			case <-time.After(c.baseDelay << (attempts - 1)):
			}
		}
		attempts++

		var reply string
		if reply, err = c.complete(ctx, messages); err == nil {
			return reply, nil
		}
		if !c.isRetryable(ctx, err) {
			break
		}
	}

	c.logger.Warn("chat completion failed",
		zap.String("deployment", c.deployment),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	return "", fmt.Errorf("failed to complete chat after %d attempts: %w", attempts, err)
}

func (c *OpenAIClient) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.deployment),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat completion")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty content in response")
	}

	return content, nil
}

// isRetryable reports whether err is worth another attempt. Cancellation, authentication
// and malformed requests are final.
func (c *OpenAIClient) isRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, final := range []string{"authentication", "unauthorized", "401", "invalid", "bad request", "400"} {
		if strings.Contains(errStr, final) {
			return false
		}
	}
	return true
}
