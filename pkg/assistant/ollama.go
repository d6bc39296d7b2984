package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"GamePartner/pkg/types"
)

// DefaultOllamaEndpoint is the local Ollama server.
const DefaultOllamaEndpoint = "http://localhost:11434"

// OllamaConfig configures the local completer.
type OllamaConfig struct {
	Endpoint    string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OllamaClient completes conversations with a multimodal model served by Ollama.
type OllamaClient struct {
	baseURL    string
	cfg        OllamaConfig
	httpClient *http.Client
	images     *ImageEncoder
}

// NewOllamaClient creates a client targeting cfg.Endpoint.
func NewOllamaClient(cfg OllamaConfig, images *ImageEncoder) *OllamaClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOllamaEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OllamaClient{
		baseURL:    strings.TrimRight(cfg.Endpoint, "/"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		images:     images,
	}
}

// Complete implements Completer using /api/chat with streaming disabled.
func (c *OllamaClient) Complete(ctx context.Context, systemPrompt string, history []types.ConversationTurn, content types.Content) (string, error) {
	messages := make([]types.PromptMessage, 0, len(history)+2)
	messages = append(messages, types.PromptMessage{Role: "system", Content: systemPrompt})
	for _, turn := range history {
		messages = append(messages, types.PromptMessage{Role: string(turn.Role), Content: TurnText(turn)})
	}

	current := types.PromptMessage{Role: string(types.RoleUser), Content: content.Text}
	if content.ImagePath != "" {
		encoded, err := c.images.Encode(content.ImagePath)
		if err != nil {
			return "", fmt.Errorf("encoding screenshot: %w", err)
		}
		current.Images = []string{encoded}
	}
	messages = append(messages, current)

	chatData := types.ChatData{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   false,
		Options:  &types.ChatOptions{Temperature: c.cfg.Temperature, NumPredict: c.cfg.MaxTokens},
	}
	body, err := json.Marshal(chatData)
	if err != nil {
		return "", fmt.Errorf("error marshaling chat data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", transportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(fmt.Errorf("error reading ollama response body: %w", err))
	}

	var parsed types.LLMResponse
	decodeErr := json.Unmarshal(respBody, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		if decodeErr == nil && parsed.Error != "" {
			msg = parsed.Error
		}
		return "", &RemoteError{
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("ollama: %s", msg),
		}
	}
	if decodeErr != nil {
		return "", &RemoteError{Kind: KindServer, Err: fmt.Errorf("failed to decode ollama response: %w", decodeErr)}
	}

	text := strings.TrimSpace(parsed.Message.Content)
	if text == "" {
		return "", &RemoteError{Kind: KindEmpty, Err: errEmptyCompletion}
	}
	return text, nil
}

// ollamaModelsResponse mirrors the JSON returned by GET /api/tags.
type ollamaModelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the models available in the Ollama instance with any
// ":latest" suffix removed.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama API returned status %d", resp.StatusCode)
	}

	var models ollamaModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, fmt.Errorf("failed to decode models response: %w", err)
	}

	names := make([]string, 0, len(models.Models))
	for _, m := range models.Models {
		names = append(names, strings.TrimSuffix(m.Name, ":latest"))
	}
	return names, nil
}

// HasModel reports whether the configured model is available.
func (c *OllamaClient) HasModel(ctx context.Context) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	want := strings.TrimSuffix(c.cfg.Model, ":latest")
	for _, m := range models {
		if m == want {
			return true, nil
		}
	}
	return false, nil
}
