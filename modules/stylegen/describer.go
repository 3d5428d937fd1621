package stylegen

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"quel-style-server/modules/common/utils"
	"quel-style-server/modules/imageload"
	"quel-style-server/modules/inference"
)

// StubStyleDescription - stub describer가 항상 반환하는 설명
const StubStyleDescription = "soft pastel brushstrokes with watercolor bloom effects"

const (
	stagedJPEGQuality = 95
	captionMaxTokens  = 80
)

// SignalKind - StyleSignal 종류
type SignalKind int

const (
	SignalImage SignalKind = iota
	SignalText
	SignalVector
)

func (k SignalKind) String() string {
	switch k {
	case SignalImage:
		return "image"
	case SignalText:
		return "text"
	case SignalVector:
		return "vector"
	}
	return "unknown"
}

// StyleSignal - describer 결과, rewriter가 한 번 소비
type StyleSignal struct {
	Kind   SignalKind
	Text   string
	Vector []float32
	Image  []byte // JPEG
}

// Describer - 스타일 이미지 → StyleSignal (같은 입력이면 같은 결과)
type Describer interface {
	Describe(ctx context.Context, img *imageload.ResolvedImage) (StyleSignal, error)
}

// stageImage - 모델에 넘길 크기로 줄이고 JPEG로 인코딩
func stageImage(img *imageload.ResolvedImage, maxSide int) ([]byte, error) {
	if img == nil || img.Image == nil {
		return nil, fmt.Errorf("no style image")
	}
	return utils.EncodeJPEG(utils.FitWithin(img.Image, maxSide), stagedJPEGQuality)
}

// VisionDescriber - 이미지 자체를 신호로 전달 (설명과 재작성을 한 번의 멀티모달 호출로 처리)
type VisionDescriber struct {
	maxSide int
}

func NewVisionDescriber(maxSide int) *VisionDescriber {
	return &VisionDescriber{maxSide: maxSide}
}

func (d *VisionDescriber) Describe(ctx context.Context, img *imageload.ResolvedImage) (StyleSignal, error) {
	staged, err := stageImage(img, d.maxSide)
	if err != nil {
		return StyleSignal{}, err
	}
	return StyleSignal{Kind: SignalImage, Image: staged}, nil
}

// CaptionDescriber - 비전 채팅 모델로 한 문장 스타일 설명 생성
type CaptionDescriber struct {
	model   inference.ChatModel
	maxSide int
}

func NewCaptionDescriber(model inference.ChatModel, maxSide int) (*CaptionDescriber, error) {
	if model == nil {
		return nil, fmt.Errorf("caption model is required")
	}
	return &CaptionDescriber{model: model, maxSide: maxSide}, nil
}

func (d *CaptionDescriber) Describe(ctx context.Context, img *imageload.ResolvedImage) (StyleSignal, error) {
	staged, err := stageImage(img, d.maxSide)
	if err != nil {
		return StyleSignal{}, err
	}

	raw, err := d.model.Chat(ctx, CaptionConversation(staged), inference.Greedy(captionMaxTokens))
	if err != nil {
		return StyleSignal{}, fmt.Errorf("style caption with %s: %w", d.model.Name(), err)
	}

	text := CleanGenerated(raw)
	if text == "" {
		return StyleSignal{}, fmt.Errorf("style caption with %s was empty", d.model.Name())
	}

	logrus.Debugf("🖌️  [Describer] Caption: %s", text)
	return StyleSignal{Kind: SignalText, Text: text}, nil
}

// EmbeddingDescriber - 비전 인코더 벡터 (텍스트 설명 없음)
type EmbeddingDescriber struct {
	encoder inference.ImageEncoder
	maxSide int
}

func NewEmbeddingDescriber(encoder inference.ImageEncoder, maxSide int) (*EmbeddingDescriber, error) {
	if encoder == nil {
		return nil, fmt.Errorf("image encoder is required")
	}
	return &EmbeddingDescriber{encoder: encoder, maxSide: maxSide}, nil
}

func (d *EmbeddingDescriber) Describe(ctx context.Context, img *imageload.ResolvedImage) (StyleSignal, error) {
	staged, err := stageImage(img, d.maxSide)
	if err != nil {
		return StyleSignal{}, err
	}

	vec, err := d.encoder.EncodeImage(ctx, staged)
	if err != nil {
		return StyleSignal{}, fmt.Errorf("style embedding with %s: %w", d.encoder.Name(), err)
	}
	return StyleSignal{Kind: SignalVector, Vector: vec}, nil
}

// StaticDescriber - 고정 설명 반환 (로컬 개발용)
type StaticDescriber struct {
	text string
}

func NewStaticDescriber(text string) *StaticDescriber {
	if text == "" {
		text = StubStyleDescription
	}
	return &StaticDescriber{text: text}
}

func (d *StaticDescriber) Describe(ctx context.Context, img *imageload.ResolvedImage) (StyleSignal, error) {
	return StyleSignal{Kind: SignalText, Text: d.text}, nil
}
