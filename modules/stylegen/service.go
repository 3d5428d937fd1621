package stylegen

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"quel-style-server/modules/common/apperror"
	"quel-style-server/modules/common/logger"
	"quel-style-server/modules/imageload"
)

// StyleLoader - 스타일 참조 → 디코딩된 비트맵
type StyleLoader interface {
	Resolve(ctx context.Context, ref imageload.StyleReference) (*imageload.ResolvedImage, error)
}

// Archiver - 생성 결과 보관 (실패해도 요청은 성공)
type Archiver interface {
	Archive(ctx context.Context, jobID string, pngData []byte) (string, error)
}

// Deps - 시작 시 한 번 만들어 주입하는 파이프라인 구성 요소
type Deps struct {
	Loader      StyleLoader
	Describer   Describer
	Rewriter    *Rewriter
	Synthesizer *Synthesizer
	Archiver    Archiver // optional

	// 동시에 모델을 사용할 수 있는 요청 수 (기본 1)
	Concurrency int64

	// true면 빈 재작성 결과를 GenerationError로 처리
	RejectEmptyRewrite bool
}

// Service - Loader → Describer → Rewriter → Synthesizer → Encoder
type Service struct {
	loader      StyleLoader
	describer   Describer
	rewriter    *Rewriter
	synthesizer *Synthesizer
	archiver    Archiver
	rejectEmpty bool

	slots *semaphore.Weighted
}

func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Loader == nil:
		return nil, fmt.Errorf("style loader is required")
	case deps.Describer == nil:
		return nil, fmt.Errorf("style describer is required")
	case deps.Rewriter == nil:
		return nil, fmt.Errorf("prompt rewriter is required")
	case deps.Synthesizer == nil:
		return nil, fmt.Errorf("image synthesizer is required")
	}

	concurrency := deps.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &Service{
		loader:      deps.Loader,
		describer:   deps.Describer,
		rewriter:    deps.Rewriter,
		synthesizer: deps.Synthesizer,
		archiver:    deps.Archiver,
		rejectEmpty: deps.RejectEmptyRewrite,
		slots:       semaphore.NewWeighted(concurrency),
	}, nil
}

// Generate - 파이프라인 실행, 첫 실패에서 중단
func (s *Service) Generate(ctx context.Context, req *Request) (*GenerationOutput, error) {
	if req == nil {
		return nil, apperror.Validation(ErrMsgMissingInput)
	}

	log := logger.For("StyleGen").WithField("job_id", req.JobID)
	start := time.Now()

	styleImg, err := s.loader.Resolve(ctx, req.Style)
	if err != nil {
		return nil, ensureKind(err, apperror.Load)
	}
	if styleImg == nil || styleImg.Image == nil {
		return nil, apperror.Load(errors.New("no image decoded"))
	}
	log.WithFields(logrus.Fields{
		"source": styleImg.Origin,
		"format": styleImg.Format,
	}).Infof("🖼️  [StyleGen] Style image loaded: %dx%d", styleImg.Width, styleImg.Height)

	rewritten, generated, err := s.runModels(ctx, log, req.Prompt, styleImg)
	if err != nil {
		return nil, err
	}

	output, pngData, err := Encode(generated, rewritten)
	if err != nil {
		return nil, err
	}

	if s.archiver != nil && req.JobID != "" {
		if path, err := s.archiver.Archive(ctx, req.JobID, pngData); err != nil {
			log.WithError(err).Warn("⚠️  [StyleGen] Archive failed (result still returned)")
		} else {
			log.Infof("📦 [StyleGen] Archived to %s", path)
		}
	}

	log.Infof("✅ [StyleGen] Completed in %s (%d bytes PNG)", time.Since(start).Round(time.Millisecond), len(pngData))
	return output, nil
}

// runModels - describe → rewrite → synthesize, 모델 슬롯을 잡은 상태로 실행
func (s *Service) runModels(ctx context.Context, log *logrus.Entry, prompt string, styleImg *imageload.ResolvedImage) (string, image.Image, error) {
	waitStart := time.Now()
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return "", nil, apperror.Internal("cancelled while waiting for a model slot", err)
	}
	defer s.slots.Release(1)

	if waited := time.Since(waitStart); waited > time.Second {
		log.Debugf("⏳ [StyleGen] Waited %s for a model slot", waited.Round(time.Millisecond))
	}

	signal, err := s.describer.Describe(ctx, styleImg)
	if err != nil {
		return "", nil, ensureKind(err, apperror.Generation)
	}

	rewriteStart := time.Now()
	rewritten, err := s.rewriter.Rewrite(ctx, prompt, signal)
	if err != nil {
		return "", nil, ensureKind(err, apperror.Generation)
	}
	log.WithFields(logrus.Fields{
		"model":    s.rewriter.ModelName(),
		"signal":   signal.Kind.String(),
		"duration": time.Since(rewriteStart).Round(time.Millisecond).String(),
	}).Infof("✍️  [StyleGen] Prompt rewritten (%d chars)", len(rewritten))

	if rewritten == "" {
		if s.rejectEmpty {
			return "", nil, apperror.Generation(errors.New("model returned an empty prompt"))
		}
		logger.LogWarning("⚠️  [StyleGen] Rewritten prompt is empty, synthesizing anyway", logrus.Fields{"job_id": log.Data["job_id"]})
	}

	synthStart := time.Now()
	generated, err := s.synthesizer.Synthesize(ctx, rewritten)
	if err != nil {
		return "", nil, ensureKind(err, apperror.Synthesis)
	}
	log.WithFields(logrus.Fields{
		"model":    s.synthesizer.ModelName(),
		"duration": time.Since(synthStart).Round(time.Millisecond).String(),
	}).Info("🎨 [StyleGen] Image synthesized")

	return rewritten, generated, nil
}

// ensureKind - 이미 분류된 에러는 그대로, 아니면 단계 kind로 감쌈
func ensureKind(err error, wrap func(error) *apperror.Error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return wrap(err)
}
