package stylegen

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"quel-style-server/modules/common/apperror"
	"quel-style-server/modules/inference"
)

// Rewriter - 스타일 신호를 반영해 프롬프트 재작성 (greedy decoding)
type Rewriter struct {
	model inference.ChatModel
	opts  inference.GenerateOptions
}

// NewRewriter - seed가 nil이면 backend 기본값 사용
func NewRewriter(model inference.ChatModel, maxNewTokens int, seed *int) (*Rewriter, error) {
	if model == nil {
		return nil, fmt.Errorf("rewriter model is required")
	}
	if maxNewTokens <= 0 {
		maxNewTokens = 150
	}

	opts := inference.Greedy(maxNewTokens)
	opts.Seed = seed
	return &Rewriter{model: model, opts: opts}, nil
}

func (r *Rewriter) ModelName() string {
	return r.model.Name()
}

// Rewrite - 모델 호출 실패는 GenerationError
func (r *Rewriter) Rewrite(ctx context.Context, prompt string, signal StyleSignal) (string, error) {
	var messages []inference.Message
	switch signal.Kind {
	case SignalImage:
		if len(signal.Image) == 0 {
			return "", apperror.Generation(fmt.Errorf("image style signal without image data"))
		}
		messages = FusedConversation(prompt, signal.Image)
	case SignalText:
		messages = TemplateConversation(prompt, signal.Text)
	case SignalVector:
		if len(signal.Vector) == 0 {
			return "", apperror.Generation(fmt.Errorf("empty style embedding"))
		}
		messages = TemplateConversation(prompt, FormatVector(signal.Vector))
	default:
		return "", apperror.Generation(fmt.Errorf("unsupported style signal %s", signal.Kind))
	}

	raw, err := r.model.Chat(ctx, messages, r.opts)
	if err != nil {
		return "", apperror.Generation(err).WithField("model", r.model.Name())
	}

	rewritten := CleanGenerated(raw)
	logrus.WithFields(logrus.Fields{
		"model":  r.model.Name(),
		"signal": signal.Kind.String(),
	}).Debugf("✍️  [Rewriter] %q → %q", prompt, rewritten)
	return rewritten, nil
}
