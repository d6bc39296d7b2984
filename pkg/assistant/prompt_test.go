package assistant

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GamePartner/pkg/types"
)

func TestBuildContentAutomatic(t *testing.T) {
	t.Parallel()

	text := BuildContent(types.AnalysisRequest{}, 150)

	assert.True(t, strings.HasPrefix(text, "Analyze this screenshot."))
	assert.Contains(t, text, "Keep your response under 150 characters")
	assert.Contains(t, text, "Additional context: None provided")
	assert.NotContains(t, text, "User message:")
	assert.NotContains(t, text, "Game:")
}

func TestBuildContentWithMessageGameAndContext(t *testing.T) {
	t.Parallel()

	text := BuildContent(types.AnalysisRequest{
		UserText: "hello",
		GameName: "Celeste",
		AdditionalContext: map[string]string{
			"memory_percent": "41.0",
			"cpu_percent":    "12.5",
		},
	}, 80)

	assert.True(t, strings.HasPrefix(text, "Game: Celeste\n\nUser message: hello\n\n"))
	assert.Contains(t, text, "under 80 characters")
	assert.Contains(t, text, "Additional context: cpu_percent=12.5, memory_percent=41.0")
}

func TestSystemPromptUsesLengthLimit(t *testing.T) {
	t.Parallel()

	prompt := SystemPrompt(120)
	assert.Contains(t, prompt, "under 120 characters")
	assert.Contains(t, prompt, "Waiting for gameplay...")
	assert.Contains(t, prompt, AutomaticTurnText)
}

func TestTurnText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, AutomaticTurnText, TurnText(types.ConversationTurn{Role: types.RoleUser}))
	assert.Equal(t, "hi", TurnText(types.ConversationTurn{Role: types.RoleUser, Text: "hi"}))
	assert.Equal(t, "", TurnText(types.ConversationTurn{Role: types.RoleAssistant}))
}

func TestUserMessage(t *testing.T) {
	t.Parallel()

	rate := &RemoteError{Kind: KindRateLimit, StatusCode: 429, Err: errors.New("slow down")}
	assert.Equal(t, "Error analyzing game state: rate limited by the AI service, will retry on the next cycle", UserMessage(rate))
	assert.Equal(t, "Error analyzing game state: could not reach the AI service", UserMessage(fmt.Errorf("wrapped: %w", &RemoteError{Kind: KindNetwork, Err: errors.New("dial")})))
	assert.Equal(t, "Error analyzing game state: boom", UserMessage(errors.New("boom")))

	assert.True(t, IsRemoteError(fmt.Errorf("x: %w", rate)))
	assert.False(t, IsRemoteError(errors.New("plain")))
	assert.Contains(t, rate.Error(), "status 429")
}

func TestImageEncoderCachesByPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	enc, err := NewImageEncoder(2)
	require.NoError(t, err)

	first, err := enc.Encode(path)
	require.NoError(t, err)
	assert.Equal(t, "YWJj", first)

	require.NoError(t, os.Remove(path))
	cached, err := enc.Encode(path)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	_, err = enc.Encode(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorContains(t, err, "failed to read image")
}
