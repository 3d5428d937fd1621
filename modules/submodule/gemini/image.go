package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"quel-style-server/modules/inference"
)

// ImageModel - Gemini 이미지 생성 (gemini-2.5-flash-image 등)
// step 수는 API에서 지원하지 않으므로 무시한다.
type ImageModel struct {
	gen   contentGenerator
	model string
}

// NewImageModel - ImageModel 생성
func NewImageModel(gen contentGenerator, model string) (*ImageModel, error) {
	if gen == nil {
		return nil, fmt.Errorf("gemini client is required")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini image model name is required")
	}
	return &ImageModel{gen: gen, model: model}, nil
}

func (m *ImageModel) Name() string { return "gemini:" + m.model }

// GenerateImage - 프롬프트로 이미지 생성 후 첫 번째 이미지 바이트 반환
func (m *ImageModel) GenerateImage(ctx context.Context, prompt string, opts inference.SynthesisOptions) ([]byte, error) {
	content := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{genai.NewPartFromText(prompt)},
	}

	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: aspectRatio(opts.Width, opts.Height),
		},
	}

	logrus.Debugf("🎨 [Gemini] Generating image with %s (aspect: %s)", m.model, config.ImageConfig.AspectRatio)
	resp, err := m.gen.GenerateContentWithRetry(ctx, m.model, []*genai.Content{content}, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate image: %w", err)
	}
	return extractImage(resp)
}

// extractImage - candidate들 중 첫 번째 inline 이미지 데이터
func extractImage(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil {
		return nil, fmt.Errorf("empty response from gemini")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}

	var reason string
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		reason = string(candidate.FinishReason)
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if mime := part.InlineData.MIMEType; mime != "" && !strings.HasPrefix(mime, "image/") {
				continue
			}
			return part.InlineData.Data, nil
		}
	}

	if reason != "" && reason != "STOP" {
		return nil, fmt.Errorf("no image generated (finish reason: %s)", reason)
	}
	return nil, fmt.Errorf("no image generated")
}

// aspectRatio - width/height를 Gemini가 지원하는 가장 가까운 비율로 변환
func aspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return "1:1"
	}

	supported := []struct {
		label string
		ratio float64
	}{
		{"1:1", 1},
		{"3:4", 3.0 / 4},
		{"4:3", 4.0 / 3},
		{"9:16", 9.0 / 16},
		{"16:9", 16.0 / 9},
	}

	target := float64(width) / float64(height)
	best := supported[0]
	bestDiff := abs(target - best.ratio)
	for _, s := range supported[1:] {
		if d := abs(target - s.ratio); d < bestDiff {
			best, bestDiff = s, d
		}
	}
	return best.label
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
