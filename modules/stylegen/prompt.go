package stylegen

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"quel-style-server/modules/inference"
)

const styleInstruction = "Rewrite the prompt to match the style, colors, and theme of this reference image: " +
	inference.ImagePlaceholder +
	"; be verbose and detailed while maintaining fidelity to the original prompt"

const captionInstruction = "Describe the visual style of this image in one sentence: medium, color palette, " +
	"lighting, texture and mood. Return only the description."

// 벡터를 프롬프트에 넣을 때 앞쪽 성분만 표시
const vectorPreviewLen = 16

// FusedConversation - 스타일 지시(이미지 첨부) → 원본 프롬프트 → 열린 Assistant 턴
func FusedConversation(prompt string, image []byte) []inference.Message {
	return []inference.Message{
		{Role: inference.RoleUser, Content: styleInstruction, Images: [][]byte{image}},
		{Role: inference.RoleUser, Content: prompt},
		{Role: inference.RoleAssistant},
	}
}

// TemplateConversation - 텍스트/벡터 스타일 신호용 단일 지시문
func TemplateConversation(prompt, style string) []inference.Message {
	text := fmt.Sprintf("User prompt: %s\nStyle: %s\n\n"+
		"Rewrite the prompt to match the style. Be verbose and detailed while maintaining fidelity "+
		"to the original prompt. Return only the new prompt.", prompt, style)

	return []inference.Message{
		{Role: inference.RoleUser, Content: text},
		{Role: inference.RoleAssistant},
	}
}

// CaptionConversation - 스타일 설명 요청
func CaptionConversation(image []byte) []inference.Message {
	return []inference.Message{
		{Role: inference.RoleUser, Content: inference.ImagePlaceholder + "\n" + captionInstruction, Images: [][]byte{image}},
		{Role: inference.RoleAssistant},
	}
}

// FormatVector - embedding(dim=N, norm=X): [v0, v1, ...]
func FormatVector(vec []float32) string {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}

	n := min(len(vec), vectorPreviewLen)
	parts := make([]string, 0, n+1)
	for _, v := range vec[:n] {
		parts = append(parts, fmt.Sprintf("%.4f", v))
	}
	if len(vec) > n {
		parts = append(parts, "...")
	}

	return fmt.Sprintf("embedding(dim=%d, norm=%.4f): [%s]", len(vec), math.Sqrt(sumSq), strings.Join(parts, ", "))
}

var (
	specialTokenPattern = regexp.MustCompile(`<\|[^|>]*\|>|<｜[^｜]*｜>|</?s>|<image_placeholder>|<image>|\[/?INST\]`)
	rolePrefixPattern   = regexp.MustCompile(`^(?i)(assistant|new prompt)\s*:\s*`)
)

// CleanGenerated - 특수/제어 토큰과 앞뒤 공백 제거
func CleanGenerated(s string) string {
	s = specialTokenPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	for {
		trimmed := rolePrefixPattern.ReplaceAllString(s, "")
		if trimmed == s {
			break
		}
		s = strings.TrimSpace(trimmed)
	}
	return s
}
