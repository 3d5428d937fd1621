package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sirupsen/logrus"

	"quel-style-server/modules/inference"
)

// ChatModel - Ollama 서버의 비전 채팅 모델 (llava, qwen2.5vl 등)
type ChatModel struct {
	client *api.Client
	model  string
}

// NewChatModel - host 예: http://127.0.0.1:11434
func NewChatModel(host, model string, timeout time.Duration) (*ChatModel, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama model name is required")
	}
	base, err := url.Parse(host)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q", host)
	}

	return &ChatModel{
		client: api.NewClient(base, &http.Client{Timeout: timeout}),
		model:  model,
	}, nil
}

func (m *ChatModel) Name() string { return "ollama:" + m.model }

// Chat - /api/chat 호출 (stream 끔)
func (m *ChatModel) Chat(ctx context.Context, messages []inference.Message, opts inference.GenerateOptions) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    m.model,
		Messages: toMessages(messages),
		Stream:   &stream,
		Options:  toOptions(opts),
	}
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("empty conversation")
	}

	var sb strings.Builder
	var doneReason string
	err := m.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		if resp.Done {
			doneReason = resp.DoneReason
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	logrus.Debugf("📥 [Ollama] %s finished (reason: %s, %d chars)", m.model, doneReason, sb.Len())
	return sb.String(), nil
}

func toMessages(messages []inference.Message) []api.Message {
	var out []api.Message
	for _, msg := range inference.TrimTrailingAssistant(messages) {
		role := "user"
		if msg.Role == inference.RoleAssistant {
			role = "assistant"
		}

		// Ollama는 이미지를 메시지에 첨부하므로 placeholder 토큰은 텍스트에서 제거
		content := strings.TrimSpace(strings.ReplaceAll(msg.Content, inference.ImagePlaceholder, "the attached image"))

		apiMsg := api.Message{Role: role, Content: content}
		for _, img := range msg.Images {
			apiMsg.Images = append(apiMsg.Images, api.ImageData(img))
		}
		out = append(out, apiMsg)
	}
	return out
}

func toOptions(opts inference.GenerateOptions) map[string]any {
	options := map[string]any{
		"temperature": opts.Temperature,
	}
	if opts.MaxNewTokens > 0 {
		options["num_predict"] = opts.MaxNewTokens
	}
	if opts.TopK > 0 {
		options["top_k"] = opts.TopK
	}
	if opts.Seed != nil {
		options["seed"] = *opts.Seed
	}
	return options
}
