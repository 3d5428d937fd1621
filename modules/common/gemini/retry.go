package gemini

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const maxRetriesPerKey = 3

// RetryDelay - 429 발생 시 같은 키로 재시도하기 전 대기 시간
var RetryDelay = 2 * time.Second

// ClientPool - API 키별 genai 클라이언트 (프로세스당 한 번 생성)
type ClientPool struct {
	apiKeys []string
	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewClientPool - ClientPool 생성
func NewClientPool(apiKeys []string) (*ClientPool, error) {
	if len(apiKeys) == 0 {
		return nil, fmt.Errorf("no API keys provided")
	}
	return &ClientPool{
		apiKeys: apiKeys,
		clients: make(map[string]*genai.Client),
	}, nil
}

func (p *ClientPool) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[apiKey]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	p.clients[apiKey] = c
	return c, nil
}

// GenerateContentWithRetry - 429 에러 시 여러 API 키로 재시도
// 각 키당 최대 3번, 429가 아닌 에러는 즉시 반환
func (p *ClientPool) GenerateContentWithRetry(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	return WithKeyRotation(ctx, p.apiKeys, func(ctx context.Context, apiKey string) (*genai.GenerateContentResponse, error) {
		client, err := p.client(ctx, apiKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return client.Models.GenerateContent(ctx, model, contents, config)
	})
}

// WithKeyRotation - 키 목록을 순회하며 call 실행 (429만 재시도)
func WithKeyRotation[T any](ctx context.Context, apiKeys []string, call func(ctx context.Context, apiKey string) (T, error)) (T, error) {
	var zero T
	if len(apiKeys) == 0 {
		return zero, fmt.Errorf("no API keys provided")
	}

	var lastErr error
	for keyIndex, apiKey := range apiKeys {
		logrus.Debugf("🔑 [Gemini Retry] Trying API key #%d/%d", keyIndex+1, len(apiKeys))

		for attempt := 1; attempt <= maxRetriesPerKey; attempt++ {
			result, err := call(ctx, apiKey)
			if err == nil {
				if attempt > 1 || keyIndex > 0 {
					logrus.Infof("✅ [Gemini Retry] Success with API key #%d (attempt %d/%d)", keyIndex+1, attempt, maxRetriesPerKey)
				}
				return result, nil
			}
			lastErr = err

			if !is429Error(err) {
				logrus.Warnf("❌ [Gemini Retry] Key #%d failed with non-429 error: %v", keyIndex+1, err)
				return zero, err
			}

			logrus.Warnf("⚠️  [Gemini Retry] Key #%d hit rate limit (429) on attempt %d/%d", keyIndex+1, attempt, maxRetriesPerKey)
			if attempt < maxRetriesPerKey {
				select {
				case <-ctx.Done():
					return zero, ctx.Err()
				case <-time.After(RetryDelay):
				}
			}
		}

		logrus.Warnf("⚠️  [Gemini Retry] Key #%d exhausted all %d attempts, trying next key...", keyIndex+1, maxRetriesPerKey)
	}

	return zero, fmt.Errorf("all %d API keys exhausted (%d attempts each), last error: %w", len(apiKeys), maxRetriesPerKey, lastErr)
}

// is429Error - 429 Rate Limit 에러인지 확인
func is429Error(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "resource_exhausted")
}
