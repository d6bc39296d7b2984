package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"GamePartner/pkg/types"
)

// AnthropicConfig configures the Claude completer.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string
	Timeout     time.Duration
}

// AnthropicClient completes conversations with the Claude Messages API.
type AnthropicClient struct {
	client anthropic.Client
	cfg    AnthropicConfig
	images *ImageEncoder
}

// NewAnthropicClient builds a client. Retries are disabled: the cooldown
// already paces requests.
func NewAnthropicClient(cfg AnthropicConfig, images *ImageEncoder) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		images: images,
	}
}

// Complete implements Completer.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt string, history []types.ConversationTurn, content types.Content) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, turn := range history {
		block := anthropic.NewTextBlock(TurnText(turn))
		if turn.Role == types.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, 2)
	if content.ImagePath != "" {
		encoded, err := c.images.Encode(content.ImagePath)
		if err != nil {
			return "", fmt.Errorf("encoding screenshot: %w", err)
		}
		blocks = append(blocks, anthropic.NewImageBlockBase64("image/png", encoded))
	}
	blocks = append(blocks, anthropic.NewTextBlock(content.Text))
	messages = append(messages, anthropic.NewUserMessage(blocks...))

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.cfg.Model),
		MaxTokens:   int64(c.cfg.MaxTokens),
		Temperature: anthropic.Float(c.cfg.Temperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    messages,
	})
	if err != nil {
		return "", classifyAnthropicError(err)
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(reply.String())
	if text == "" {
		return "", &RemoteError{Kind: KindEmpty, Err: errEmptyCompletion}
	}
	return text, nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &RemoteError{Kind: kindForStatus(apiErr.StatusCode), StatusCode: apiErr.StatusCode, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return transportError(err)
}
