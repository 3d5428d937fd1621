package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"quel-style-server/modules/inference"
)

// contentGenerator - GenerateContent 호출 (common/gemini.ClientPool 이 구현)
type contentGenerator interface {
	GenerateContentWithRetry(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ChatModel - Gemini 멀티모달 채팅
type ChatModel struct {
	gen   contentGenerator
	model string
}

// NewChatModel - ChatModel 생성
func NewChatModel(gen contentGenerator, model string) (*ChatModel, error) {
	if gen == nil {
		return nil, fmt.Errorf("gemini client is required")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini chat model name is required")
	}
	return &ChatModel{gen: gen, model: model}, nil
}

func (m *ChatModel) Name() string { return "gemini:" + m.model }

// Chat - 대화를 Gemini contents로 변환 후 텍스트 응답 반환
func (m *ChatModel) Chat(ctx context.Context, messages []inference.Message, opts inference.GenerateOptions) (string, error) {
	contents := buildContents(messages)
	if len(contents) == 0 {
		return "", fmt.Errorf("empty conversation")
	}

	config := &genai.GenerateContentConfig{
		Temperature:     float32Ptr(opts.Temperature),
		MaxOutputTokens: int32(opts.MaxNewTokens),
		// thinking 토큰이 출력 한도를 소모하지 않도록 끔
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: int32Ptr(0)},
	}
	if opts.TopK > 0 {
		config.TopK = float32Ptr(float32(opts.TopK))
	}
	if opts.Seed != nil {
		config.Seed = int32Ptr(int32(*opts.Seed))
	}

	logrus.Debugf("📤 [Gemini] Calling %s with %d contents", m.model, len(contents))
	resp, err := m.gen.GenerateContentWithRetry(ctx, m.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return extractText(resp)
}

// buildContents - 연속된 같은 역할의 메시지는 하나의 Content로 합침
func buildContents(messages []inference.Message) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range inference.TrimTrailingAssistant(messages) {
		role := "user"
		if msg.Role == inference.RoleAssistant {
			role = "model"
		}

		parts := buildParts(msg)
		if len(parts) == 0 {
			continue
		}

		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

// buildParts - <image_placeholder> 위치에 이미지 part를 끼워 넣음
func buildParts(msg inference.Message) []*genai.Part {
	var parts []*genai.Part
	segments := strings.Split(msg.Content, inference.ImagePlaceholder)

	imageIdx := 0
	for i, segment := range segments {
		if text := strings.TrimSpace(segment); text != "" {
			parts = append(parts, genai.NewPartFromText(text))
		}
		if i < len(segments)-1 && imageIdx < len(msg.Images) {
			parts = append(parts, imagePart(msg.Images[imageIdx]))
			imageIdx++
		}
	}
	for ; imageIdx < len(msg.Images); imageIdx++ {
		parts = append(parts, imagePart(msg.Images[imageIdx]))
	}
	return parts
}

func imagePart(data []byte) *genai.Part {
	return &genai.Part{
		InlineData: &genai.Blob{
			MIMEType: http.DetectContentType(data),
			Data:     data,
		},
	}
}

// extractText - 첫 번째 candidate의 텍스트 part를 이어 붙임 (thought 제외)
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("empty response from gemini")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}

	candidate := resp.Candidates[0]
	var sb strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
	}

	reason := string(candidate.FinishReason)
	if sb.Len() == 0 && reason != "" && reason != "STOP" && reason != "MAX_TOKENS" {
		return "", fmt.Errorf("generation stopped: %s", reason)
	}
	return sb.String(), nil
}

func float32Ptr(f float32) *float32 { return &f }

func int32Ptr(i int32) *int32 { return &i }
