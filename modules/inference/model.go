// Package inference defines the contracts the pipeline uses to reach external
// models. Backends live under modules/submodule.
package inference

import "context"

// Role - 대화 메시지 역할
type Role string

const (
	RoleUser      Role = "User"
	RoleAssistant Role = "Assistant"
)

// ImagePlaceholder - 대화 텍스트 안에서 첨부 이미지 위치를 표시하는 토큰
const ImagePlaceholder = "<image_placeholder>"

// Message - 멀티모달 대화 메시지
type Message struct {
	Role    Role
	Content string
	Images  [][]byte // JPEG/PNG 바이트
}

// GenerateOptions - 텍스트 생성 옵션
// Temperature 0 + TopK 1 이면 greedy decoding.
type GenerateOptions struct {
	MaxNewTokens int
	Temperature  float32
	TopK         int
	Seed         *int
}

// Greedy - 결정적 생성 옵션
func Greedy(maxNewTokens int) GenerateOptions {
	return GenerateOptions{MaxNewTokens: maxNewTokens, Temperature: 0, TopK: 1}
}

// SynthesisOptions - 이미지 생성 옵션
type SynthesisOptions struct {
	Steps  int
	Width  int
	Height int
}

// ChatModel - 텍스트/비전 채팅 모델
type ChatModel interface {
	Name() string
	Chat(ctx context.Context, messages []Message, opts GenerateOptions) (string, error)
}

// ImageEncoder - 이미지 → 고정 길이 벡터
type ImageEncoder interface {
	Name() string
	EncodeImage(ctx context.Context, image []byte) ([]float32, error)
}

// ImageModel - 프롬프트 → 인코딩된 이미지 바이트 (PNG/JPEG/WebP)
type ImageModel interface {
	Name() string
	GenerateImage(ctx context.Context, prompt string, opts SynthesisOptions) ([]byte, error)
}

// TrimTrailingAssistant - 생성 프롬프트 역할의 빈 Assistant 턴 제거
// 채팅 API는 마지막 열린 턴을 자동으로 붙이므로 backend에서 호출한다.
func TrimTrailingAssistant(messages []Message) []Message {
	for len(messages) > 0 {
		last := messages[len(messages)-1]
		if last.Role != RoleAssistant || last.Content != "" || len(last.Images) > 0 {
			break
		}
		messages = messages[:len(messages)-1]
	}
	return messages
}
