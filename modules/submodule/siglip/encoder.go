package siglip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// EmbedImageRequest - POST /api/embed/image 요청
type EmbedImageRequest struct {
	Model string `json:"model"`
	Image string `json:"image"` // base64
}

// EmbedImageResponse - POST /api/embed/image 응답
type EmbedImageResponse struct {
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	Error     string    `json:"error,omitempty"`
}

// Encoder - SigLIP/CLIP 계열 비전 인코더 HTTP 클라이언트
type Encoder struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewEncoder - Encoder 생성
func NewEncoder(baseURL, model string, timeout time.Duration) (*Encoder, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("encoder URL is required")
	}
	if model == "" {
		return nil, fmt.Errorf("encoder model name is required")
	}
	return &Encoder{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (e *Encoder) Name() string { return "siglip:" + e.model }

// EncodeImage - 이미지 바이트 → 임베딩 벡터
func (e *Encoder) EncodeImage(ctx context.Context, image []byte) ([]float32, error) {
	body, err := json.Marshal(EmbedImageRequest{
		Model: e.model,
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed/image", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("encoder request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var out EmbedImageResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(respBody, &out) == nil && out.Error != "" {
			return nil, fmt.Errorf("encoder error: status=%d, %s", resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("encoder error: status=%d, body=%s", resp.StatusCode, truncate(string(respBody), 200))
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("encoder returned an empty embedding")
	}
	if out.Dimension > 0 && out.Dimension != len(out.Embedding) {
		return nil, fmt.Errorf("encoder dimension mismatch: declared %d, got %d", out.Dimension, len(out.Embedding))
	}

	logrus.Debugf("🧭 [SigLIP] Encoded style image with %s (dim: %d)", e.model, len(out.Embedding))
	return out.Embedding, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
