package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"quel-style-server/modules/common/utils"
)

const webpQuality = 90.0

type Client struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client

	// PNG → WebP 변환기
	convertToWebP func([]byte, float32) ([]byte, error)
	now           func() time.Time
}

// NewClient - Storage 클라이언트 생성
func NewClient(supabaseURL, serviceKey, bucket string) (*Client, error) {
	if supabaseURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}
	if bucket == "" {
		bucket = "attachments"
	}

	return &Client{
		baseURL:       strings.TrimRight(supabaseURL, "/"),
		serviceKey:    serviceKey,
		bucket:        bucket,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		convertToWebP: utils.ConvertPNGToWebP,
		now:           time.Now,
	}, nil
}

// ObjectPath - style-results/{yyyy-mm-dd}/{jobID}.webp
func (c *Client) ObjectPath(jobID string) string {
	return fmt.Sprintf("style-results/%s/%s.webp", c.now().UTC().Format("2006-01-02"), jobID)
}

// Archive - 생성된 PNG를 WebP로 변환해 Supabase Storage에 업로드
func (c *Client) Archive(ctx context.Context, jobID string, pngData []byte) (string, error) {
	webpData, err := c.convertToWebP(pngData, webpQuality)
	if err != nil {
		return "", fmt.Errorf("failed to convert PNG to WebP: %w", err)
	}

	filePath := c.ObjectPath(jobID)
	if err := c.upload(ctx, filePath, webpData, "image/webp"); err != nil {
		return "", err
	}

	logrus.Infof("✅ [Storage] WebP image uploaded: %s (%d bytes)", filePath, len(webpData))
	return filePath, nil
}

func (c *Client) upload(ctx context.Context, filePath string, data []byte, contentType string) error {
	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, filePath)
	logrus.Debugf("📤 [Storage] Uploading to %s", uploadURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
