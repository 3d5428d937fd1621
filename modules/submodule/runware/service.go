package runware

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quel-style-server/modules/inference"
)

// FluxDevModelID - FLUX.1 [dev] (Runware AIR id)
const FluxDevModelID = "runware:101@1"

// Service - Runware FLUX 이미지 생성 클라이언트
type Service struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	model      string
}

// NewService - Service 생성
func NewService(apiURL, apiKey, model string) (*Service, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("RUNWARE_API_KEY not configured")
	}
	if apiURL == "" {
		return nil, fmt.Errorf("RUNWARE_API_URL not configured")
	}
	if model == "" {
		model = FluxDevModelID
	}

	logrus.Infof("✅ [Runware] Service initialized (model: %s)", model)
	return &Service{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiURL:     apiURL,
		apiKey:     apiKey,
		model:      model,
	}, nil
}

func (s *Service) Name() string { return "runware:" + s.model }

// GenerateImage - FLUX로 이미지 생성 후 PNG 바이트 반환
func (s *Service) GenerateImage(ctx context.Context, prompt string, opts inference.SynthesisOptions) ([]byte, error) {
	// 기본값 설정
	width := opts.Width
	if width <= 0 {
		width = 1024
	}
	height := opts.Height
	if height <= 0 {
		height = 1024
	}
	steps := opts.Steps
	if steps <= 0 {
		steps = 30
	}

	logrus.Infof("🎨 [Runware] Generating image - size: %dx%d, steps: %d, prompt: %s",
		width, height, steps, truncateString(prompt, 50))

	runwareReq := RunwareRequest{
		TaskType:       "imageInference",
		TaskUUID:       uuid.New().String(),
		PositivePrompt: prompt,
		Model:          s.model,
		Width:          width,
		Height:         height,
		NumberResults:  1,
		OutputType:     "URL",
		OutputFormat:   "PNG",
		Steps:          steps,
	}

	jsonBody, err := json.Marshal([]RunwareRequest{runwareReq})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("runware API error: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var runwareResp RunwareResponse
	parseErr := json.Unmarshal(bodyBytes, &runwareResp)

	if resp.StatusCode != http.StatusOK {
		if parseErr == nil && runwareResp.errorMessage() != "" {
			return nil, fmt.Errorf("runware API error: status=%d, %s", resp.StatusCode, runwareResp.errorMessage())
		}
		return nil, fmt.Errorf("runware API error: status=%d, body=%s", resp.StatusCode, truncateString(string(bodyBytes), 200))
	}
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", parseErr)
	}
	if msg := runwareResp.errorMessage(); msg != "" {
		return nil, fmt.Errorf("runware API error: %s", msg)
	}
	if len(runwareResp.Data) == 0 {
		return nil, fmt.Errorf("no image generated from Runware")
	}

	result := runwareResp.Data[0]
	if result.ImageBase64Data != "" {
		return base64.StdEncoding.DecodeString(result.ImageBase64Data)
	}
	if result.ImageURL == "" {
		return nil, fmt.Errorf("no image URL in response")
	}

	imageData, err := s.DownloadImageFromURL(ctx, result.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated image: %w", err)
	}

	logrus.Infof("✅ [Runware] Image generated successfully (%d bytes)", len(imageData))
	return imageData, nil
}

// DownloadImageFromURL - URL에서 이미지 다운로드
func (s *Service) DownloadImageFromURL(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
