package feedback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Vote - 👍 / 👎
type Vote string

const (
	VoteUp   Vote = "up"
	VoteDown Vote = "down"
)

// ParseVote - "up"/"down" (대소문자 무시)
func ParseVote(s string) (Vote, bool) {
	switch Vote(strings.ToLower(strings.TrimSpace(s))) {
	case VoteUp:
		return VoteUp, true
	case VoteDown:
		return VoteDown, true
	}
	return "", false
}

// Record - 피드백 로그 한 줄
type Record struct {
	Prompt         string    `json:"prompt"`
	StyleImgURL    string    `json:"style_img_url"`
	StyleImgSHA256 string    `json:"style_img_sha256,omitempty"`
	Revised        string    `json:"revised"`
	Vote           Vote      `json:"vote"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewRecord - base64 스타일 이미지는 원본 대신 sha256만 남김
func NewRecord(prompt, styleURL, styleB64, revised string, vote Vote) Record {
	rec := Record{
		Prompt:      prompt,
		StyleImgURL: styleURL,
		Revised:     revised,
		Vote:        vote,
		CreatedAt:   time.Now().UTC(),
	}
	if styleB64 != "" {
		sum := sha256.Sum256([]byte(styleB64))
		rec.StyleImgSHA256 = hex.EncodeToString(sum[:])
	}
	return rec
}

// Sink - 피드백 기록 대상 (append-only, 읽지 않음)
type Sink interface {
	Record(ctx context.Context, rec Record) error
}
