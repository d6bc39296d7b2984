package assistant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GamePartner/pkg/types"
)

func TestOllamaCompleteSendsChatRequest(t *testing.T) {
	var got types.ChatData
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(types.LLMResponse{
			Model:   "gemma3:12b",
			Message: types.PromptMessage{Role: "assistant", Content: "Grab the shield."},
		})
	}))
	defer srv.Close()

	client := NewOllamaClient(OllamaConfig{Endpoint: srv.URL + "/", Model: "gemma3:12b", Temperature: 0.2, MaxTokens: 64}, newTestEncoder(t))
	history := []types.ConversationTurn{
		{Role: types.RoleUser, Text: "what now?"},
		{Role: types.RoleAssistant, Text: "Waiting for gameplay..."},
	}

	reply, err := client.Complete(context.Background(), "sys", history, types.Content{Text: "Analyze", ImagePath: writeImage(t)})
	require.NoError(t, err)
	assert.Equal(t, "Grab the shield.", reply)

	assert.Equal(t, "gemma3:12b", got.Model)
	assert.False(t, got.Stream)
	require.NotNil(t, got.Options)
	assert.Equal(t, 64, got.Options.NumPredict)

	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "what now?", got.Messages[1].Content)
	last := got.Messages[3]
	assert.Equal(t, "Analyze", last.Content)
	require.Len(t, last.Images, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("png-bytes")), last.Images[0])
}

func TestOllamaCompleteStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'llava' not found"}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(OllamaConfig{Endpoint: srv.URL, Model: "llava"}, newTestEncoder(t))
	_, err := client.Complete(context.Background(), "sys", nil, types.Content{Text: "x"})

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindBadRequest, re.Kind)
	assert.Equal(t, http.StatusNotFound, re.StatusCode)
	assert.ErrorContains(t, err, "model 'llava' not found")
}

func TestOllamaCompleteEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":"   "}}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(OllamaConfig{Endpoint: srv.URL, Model: "m"}, newTestEncoder(t))
	_, err := client.Complete(context.Background(), "sys", nil, types.Content{Text: "x"})

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindEmpty, re.Kind)
}

func TestOllamaListModelsAndHasModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Write([]byte(`{"models":[{"name":"llava:latest"},{"name":"gemma3:12b"}]}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(OllamaConfig{Endpoint: srv.URL, Model: "gemma3:12b"}, newTestEncoder(t))
	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llava", "gemma3:12b"}, models)

	ok, err := client.HasModel(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	missing := NewOllamaClient(OllamaConfig{Endpoint: srv.URL, Model: "llama3.2"}, newTestEncoder(t))
	ok, err = missing.HasModel(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOllamaListModelsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewOllamaClient(OllamaConfig{Endpoint: srv.URL, Model: "m"}, newTestEncoder(t))
	_, err := client.ListModels(context.Background())
	assert.ErrorContains(t, err, "failed to connect to Ollama")
}
