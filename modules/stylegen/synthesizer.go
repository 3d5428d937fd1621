package stylegen

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"quel-style-server/modules/common/apperror"
	"quel-style-server/modules/common/utils"
	"quel-style-server/modules/inference"
)

// Synthesizer - 재작성된 프롬프트 → 비트맵 (고정 step 수, guidance 노출 없음)
type Synthesizer struct {
	model     inference.ImageModel
	opts      inference.SynthesisOptions
	maxPixels int64
}

func NewSynthesizer(model inference.ImageModel, opts inference.SynthesisOptions) (*Synthesizer, error) {
	if model == nil {
		return nil, fmt.Errorf("image model is required")
	}
	if opts.Steps <= 0 {
		opts.Steps = 30
	}
	if opts.Width <= 0 {
		opts.Width = 1024
	}
	if opts.Height <= 0 {
		opts.Height = 1024
	}
	return &Synthesizer{model: model, opts: opts, maxPixels: utils.DefaultMaxPixels}, nil
}

// WithMaxPixels - 생성 이미지 디코딩 픽셀 한도 (<= 0 이면 기본값 유지)
func (s *Synthesizer) WithMaxPixels(n int64) *Synthesizer {
	if n > 0 {
		s.maxPixels = n
	}
	return s
}

func (s *Synthesizer) ModelName() string {
	return s.model.Name()
}

// Synthesize - backend 에러, 빈 결과, 디코딩 실패는 모두 SynthesisError
func (s *Synthesizer) Synthesize(ctx context.Context, prompt string) (image.Image, error) {
	data, err := s.model.GenerateImage(ctx, prompt, s.opts)
	if err != nil {
		return nil, apperror.Synthesis(err).WithField("model", s.model.Name())
	}
	if len(data) == 0 {
		return nil, apperror.Synthesis(fmt.Errorf("%s returned no image", s.model.Name()))
	}

	img, format, err := utils.DecodeImage(data, s.maxPixels)
	if errors.Is(err, utils.ErrImageTooLarge) {
		return nil, apperror.Synthesis(err).WithField("model", s.model.Name())
	}
	if err != nil {
		return nil, apperror.Synthesis(fmt.Errorf("failed to decode generated image: %w", err))
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, apperror.Synthesis(fmt.Errorf("%s returned an empty %s image", s.model.Name(), format))
	}
	return img, nil
}
