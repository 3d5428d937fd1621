package stylegen

import (
	"strings"

	"quel-style-server/modules/common/apperror"
	"quel-style-server/modules/feedback"
	"quel-style-server/modules/imageload"
)

// 검증 에러 메시지
const (
	ErrMsgMissingInput   = "prompt and either style_img_url or style_img_b64 are required"
	ErrMsgBothStyles     = "only one of style_img_url or style_img_b64 may be set"
	ErrMsgFeedbackPrompt = "prompt is required for feedback"
	ErrMsgFeedbackVote   = `feedback must be "up" or "down"`
)

// Event - 호스팅 런타임이 전달하는 요청 객체
type Event struct {
	ID    string `json:"id,omitempty"`
	Input *Input `json:"input"`
}

// Input - event.input
type Input struct {
	Prompt      string `json:"prompt"`
	StyleImgURL string `json:"style_img_url,omitempty"`
	StyleImgB64 string `json:"style_img_b64,omitempty"`

	// 피드백 모드 (frontend 👍/👎)
	Feedback string `json:"feedback,omitempty"`
	Revised  string `json:"revised,omitempty"`
}

// Request - 검증된 생성 요청
type Request struct {
	JobID  string
	Prompt string
	Style  imageload.StyleReference
}

// Response - {"output": ..., "error": ...}
// 실패 시 output은 null.
type Response struct {
	Output any    `json:"output"`
	Error  string `json:"error,omitempty"`
}

// GenerationOutput - 성공 응답 output
type GenerationOutput struct {
	PromptFinal string `json:"prompt_final"`
	ImageB64    string `json:"image_b64"`
}

// FeedbackOutput - 피드백 기록 응답 output
type FeedbackOutput struct {
	Feedback string        `json:"feedback"`
	Vote     feedback.Vote `json:"vote"`
}

// IsFeedback - 피드백 모드 요청인지
func (in *Input) IsFeedback() bool {
	return in != nil && strings.TrimSpace(in.Feedback) != ""
}

// Validate - 생성 요청 검증 (prompt 필수, 스타일 필드는 정확히 하나)
func (in *Input) Validate(jobID string) (*Request, error) {
	if in == nil {
		return nil, apperror.Validation(ErrMsgMissingInput)
	}

	prompt := strings.TrimSpace(in.Prompt)
	styleURL := strings.TrimSpace(in.StyleImgURL)
	styleB64 := strings.TrimSpace(in.StyleImgB64)

	if prompt == "" || (styleURL == "" && styleB64 == "") {
		return nil, apperror.Validation(ErrMsgMissingInput)
	}
	if styleURL != "" && styleB64 != "" {
		return nil, apperror.Validation(ErrMsgBothStyles)
	}

	ref := imageload.StyleReference{Kind: imageload.ImageURL, Value: styleURL}
	if styleB64 != "" {
		ref = imageload.StyleReference{Kind: imageload.Base64Image, Value: styleB64}
	}

	return &Request{JobID: jobID, Prompt: prompt, Style: ref}, nil
}

// FeedbackRecord - 피드백 요청 검증 후 기록용 레코드 생성
func (in *Input) FeedbackRecord() (feedback.Record, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return feedback.Record{}, apperror.Validation(ErrMsgFeedbackPrompt)
	}

	vote, ok := feedback.ParseVote(in.Feedback)
	if !ok {
		return feedback.Record{}, apperror.Validation(ErrMsgFeedbackVote)
	}

	return feedback.NewRecord(prompt, strings.TrimSpace(in.StyleImgURL), strings.TrimSpace(in.StyleImgB64), strings.TrimSpace(in.Revised), vote), nil
}
