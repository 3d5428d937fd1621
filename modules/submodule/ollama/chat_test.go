package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quel-style-server/modules/inference"
)

type chatBody struct {
	Model    string         `json:"model"`
	Stream   *bool          `json:"stream"`
	Options  map[string]any `json:"options"`
	Messages []struct {
		Role    string   `json:"role"`
		Content string   `json:"content"`
		Images  []string `json:"images"`
	} `json:"messages"`
}

func TestChat(t *testing.T) {
	var got chatBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":       "llava:13b",
			"message":     map[string]any{"role": "assistant", "content": "A wizard in a misty watercolor forest"},
			"done":        true,
			"done_reason": "stop",
		})
	}))
	defer srv.Close()

	model, err := NewChatModel(srv.URL, "llava:13b", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ollama:llava:13b", model.Name())

	out, err := model.Chat(context.Background(), []inference.Message{
		{Role: inference.RoleUser, Content: "Match " + inference.ImagePlaceholder, Images: [][]byte{[]byte("img")}},
		{Role: inference.RoleUser, Content: "A wizard"},
		{Role: inference.RoleAssistant},
	}, inference.Greedy(150))
	require.NoError(t, err)
	assert.Equal(t, "A wizard in a misty watercolor forest", out)

	assert.Equal(t, "llava:13b", got.Model)
	require.NotNil(t, got.Stream)
	assert.False(t, *got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "Match the attached image", got.Messages[0].Content)
	assert.Len(t, got.Messages[0].Images, 1)
	assert.Equal(t, "A wizard", got.Messages[1].Content)

	assert.EqualValues(t, 150, got.Options["num_predict"])
	assert.EqualValues(t, 0, got.Options["temperature"])
	assert.EqualValues(t, 1, got.Options["top_k"])
}

func TestChatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "model \"llava:13b\" not found"})
	}))
	defer srv.Close()

	model, err := NewChatModel(srv.URL, "llava:13b", 5*time.Second)
	require.NoError(t, err)

	_, err = model.Chat(context.Background(), []inference.Message{{Role: inference.RoleUser, Content: "hi"}}, inference.Greedy(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestNewChatModelValidation(t *testing.T) {
	_, err := NewChatModel("not a url", "llava", time.Second)
	assert.Error(t, err)
	_, err = NewChatModel("http://localhost:11434", "", time.Second)
	assert.Error(t, err)
}
