package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"quel-style-server/modules/common/config"
	"quel-style-server/modules/common/database"
	geminiretry "quel-style-server/modules/common/gemini"
	"quel-style-server/modules/common/storage"
	"quel-style-server/modules/feedback"
	"quel-style-server/modules/imageload"
	"quel-style-server/modules/inference"
	"quel-style-server/modules/stylegen"
	"quel-style-server/modules/submodule/gemini"
	"quel-style-server/modules/submodule/ollama"
	"quel-style-server/modules/submodule/runware"
	"quel-style-server/modules/submodule/siglip"
	"quel-style-server/modules/submodule/stub"
)

// pipeline - 시작 시 한 번 구성하는 핸들러와 정리 대상
type pipeline struct {
	handler *stylegen.Handler
	closers []io.Closer
}

func (p *pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// buildPipeline - 설정에 맞는 backend를 골라 핸들러 구성
func buildPipeline(cfg *config.Config) (*pipeline, error) {
	var pool *geminiretry.ClientPool
	if len(cfg.GeminiAPIKeys) > 0 {
		var err error
		if pool, err = geminiretry.NewClientPool(cfg.GeminiAPIKeys); err != nil {
			return nil, err
		}
	}

	chat, err := newChatModel(cfg, pool)
	if err != nil {
		return nil, fmt.Errorf("rewriter backend: %w", err)
	}
	imageModel, err := newImageModel(cfg, pool)
	if err != nil {
		return nil, fmt.Errorf("synth backend: %w", err)
	}
	describer, err := newDescriber(cfg, chat)
	if err != nil {
		return nil, fmt.Errorf("style describer: %w", err)
	}

	var seed *int
	if cfg.RewriteSeed != 0 {
		seed = &cfg.RewriteSeed
	}
	rewriter, err := stylegen.NewRewriter(chat, cfg.RewriteMaxTokens, seed)
	if err != nil {
		return nil, err
	}
	synth, err := stylegen.NewSynthesizer(imageModel, inference.SynthesisOptions{
		Steps:  cfg.SynthSteps,
		Width:  cfg.SynthWidth,
		Height: cfg.SynthHeight,
	})
	if err != nil {
		return nil, err
	}

	deps := stylegen.Deps{
		Loader: imageload.NewLoader(imageload.Options{
			MaxBytes:     cfg.StyleImageMaxBytes,
			MaxPixels:    cfg.StyleImageMaxPixels,
			FetchTimeout: cfg.StyleImageFetchTimeout,
			BlockPrivate: cfg.StyleImageBlockPrivate,
		}),
		Describer:          describer,
		Rewriter:           rewriter,
		Synthesizer:        synth.WithMaxPixels(cfg.StyleImageMaxPixels),
		Concurrency:        int64(cfg.WorkerConcurrency),
		RejectEmptyRewrite: cfg.RejectEmptyPrompt,
	}
	if cfg.ArchiveEnabled {
		archiver, err := storage.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.ArchiveBucket)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		deps.Archiver = archiver
	}

	service, err := stylegen.NewService(deps)
	if err != nil {
		return nil, err
	}

	p := &pipeline{}
	sink, err := newFeedbackSink(cfg, p)
	if err != nil {
		return nil, err
	}
	p.handler = stylegen.NewHandler(service, sink)

	logrus.WithFields(logrus.Fields{
		"rewriter":  chat.Name(),
		"describer": cfg.StyleDescriber,
		"synth":     imageModel.Name(),
	}).Info("🧩 Pipeline ready")
	return p, nil
}

func newChatModel(cfg *config.Config, pool *geminiretry.ClientPool) (inference.ChatModel, error) {
	switch cfg.RewriterBackend {
	case config.BackendGemini:
		return gemini.NewChatModel(pool, cfg.GeminiChatModel)
	case config.BackendOllama:
		return ollama.NewChatModel(cfg.OllamaHost, cfg.OllamaModel, cfg.OllamaTimeout)
	case config.BackendStub:
		return stub.NewChatModel(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.RewriterBackend)
}

func newImageModel(cfg *config.Config, pool *geminiretry.ClientPool) (inference.ImageModel, error) {
	switch cfg.SynthBackend {
	case config.BackendGemini:
		return gemini.NewImageModel(pool, cfg.GeminiImageModel)
	case config.BackendRunware:
		return runware.NewService(cfg.RunwareAPIURL, cfg.RunwareAPIKey, cfg.RunwareModel)
	case config.BackendStub:
		return stub.NewImageModel(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.SynthBackend)
}

func newDescriber(cfg *config.Config, chat inference.ChatModel) (stylegen.Describer, error) {
	switch cfg.StyleDescriber {
	case config.DescriberVision:
		return stylegen.NewVisionDescriber(cfg.StyleImageMaxSide), nil
	case config.DescriberCaption:
		return stylegen.NewCaptionDescriber(chat, cfg.StyleImageMaxSide)
	case config.DescriberEmbedding:
		encoder, err := siglip.NewEncoder(cfg.EncoderURL, cfg.EncoderModel, cfg.OllamaTimeout)
		if err != nil {
			return nil, err
		}
		return stylegen.NewEmbeddingDescriber(encoder, cfg.StyleImageMaxSide)
	case config.DescriberStub:
		return stylegen.NewStaticDescriber(stylegen.StubStyleDescription), nil
	}
	return nil, fmt.Errorf("unknown describer %q", cfg.StyleDescriber)
}

// newFeedbackSink - NDJSON 파일 + (설정 시) Supabase 테이블
func newFeedbackSink(cfg *config.Config, p *pipeline) (feedback.Sink, error) {
	var sinks feedback.MultiSink

	if cfg.FeedbackLogPath != "" {
		fileSink, err := feedback.NewFileSink(cfg.FeedbackLogPath)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, fileSink)
		sinks = append(sinks, fileSink)
	}

	if cfg.SupabaseEnabled() {
		db, err := database.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, feedback.NewSupabaseSink(db, cfg.FeedbackTable))
		logrus.Infof("📝 [Feedback] Recording to Supabase table %s", cfg.FeedbackTable)
	}

	if len(sinks) == 0 {
		logrus.Warn("⚠️  [Feedback] No feedback sink configured")
		return nil, nil
	}
	return sinks, nil
}
