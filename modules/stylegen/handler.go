package stylegen

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"quel-style-server/modules/common/apperror"
	"quel-style-server/modules/common/logger"
	"quel-style-server/modules/feedback"
)

// Generator - 검증된 요청으로 파이프라인 실행
type Generator interface {
	Generate(ctx context.Context, req *Request) (*GenerationOutput, error)
}

// Handler - event 검증 → 처리 → {output, error} 응답
type Handler struct {
	generator Generator
	sink      feedback.Sink
}

// NewHandler - sink가 nil이면 피드백 요청은 InternalError
func NewHandler(generator Generator, sink feedback.Sink) *Handler {
	return &Handler{generator: generator, sink: sink}
}

// Handle - 어떤 실패도 panic 없이 실패 응답으로 변환
func (h *Handler) Handle(ctx context.Context, event Event) Response {
	log := logger.For("Handler").WithField("job_id", event.ID)

	if event.Input.IsFeedback() {
		return h.handleFeedback(ctx, log, event.Input)
	}

	req, err := event.Input.Validate(event.ID)
	if err != nil {
		return failure(log, err)
	}

	log.WithField("style_source", req.Style.Kind.String()).Infof("📥 [Handler] Generating for prompt: %q", req.Prompt)

	output, err := h.generator.Generate(ctx, req)
	if err != nil {
		return failure(log, err)
	}
	return Response{Output: output}
}

func (h *Handler) handleFeedback(ctx context.Context, log *logrus.Entry, input *Input) Response {
	rec, err := input.FeedbackRecord()
	if err != nil {
		return failure(log, err)
	}
	if h.sink == nil {
		return failure(log, apperror.Internal("feedback recording is not configured", nil))
	}

	if err := h.sink.Record(ctx, rec); err != nil {
		return failure(log, apperror.Internal("failed to record feedback", err))
	}

	log.WithField("vote", rec.Vote).Info("👍 [Handler] Feedback recorded")
	return Response{Output: FeedbackOutput{Feedback: "recorded", Vote: rec.Vote}}
}

func failure(log *logrus.Entry, err error) Response {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		log = log.WithFields(appErr.Fields())
	} else {
		log = log.WithField("error_kind", string(apperror.KindInternal))
	}

	if apperror.Is(err, apperror.KindValidation) {
		log.Warnf("⚠️  [Handler] Rejected: %v", err)
	} else {
		log.Errorf("❌ [Handler] Failed: %v", err)
	}
	return Response{Output: nil, Error: err.Error()}
}
