package imageload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"quel-style-server/modules/common/apperror"
	"quel-style-server/modules/common/utils"
)

const userAgent = "Mozilla/5.0"

// ReferenceKind - 요청에서 스타일 이미지가 들어온 필드
type ReferenceKind int

const (
	Base64Image ReferenceKind = iota
	ImageURL
)

func (k ReferenceKind) String() string {
	if k == ImageURL {
		return "url"
	}
	return "base64"
}

// StyleReference - 요청에서 파싱된 스타일 이미지 참조
type StyleReference struct {
	Kind  ReferenceKind
	Value string
}

// ResolvedImage - 디코딩된 RGB 비트맵
type ResolvedImage struct {
	Image  *image.RGBA
	Width  int
	Height int
	Format string // png, jpeg, gif, webp
	Origin string // base64 | url
}

// Options - Loader 설정
type Options struct {
	MaxBytes     int64
	MaxPixels    int64
	FetchTimeout time.Duration
	BlockPrivate bool
}

// Loader - 스타일 이미지 로더
type Loader struct {
	httpClient *http.Client
	maxBytes   int64
	maxPixels  int64
}

// NewLoader - Loader 생성
func NewLoader(opts Options) *Loader {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 20 << 20
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = utils.DefaultMaxPixels
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}

	return &Loader{
		httpClient: newHTTPClient(opts.FetchTimeout, opts.BlockPrivate),
		maxBytes:   opts.MaxBytes,
		maxPixels:  opts.MaxPixels,
	}
}

// Resolve - base64 디코드를 먼저 시도하고 실패하면 원래 문자열을 URL로 다운로드
// 순서는 참조 종류와 무관하게 고정이며 모든 실패는 LoadError.
func (l *Loader) Resolve(ctx context.Context, ref StyleReference) (*ResolvedImage, error) {
	raw := strings.TrimSpace(ref.Value)
	if raw == "" {
		return nil, apperror.Load(errors.New("empty style reference"))
	}

	img, format, b64Err := decodeBase64Image(raw, l.maxPixels)
	if b64Err == nil {
		logrus.Debugf("🖼️  [ImageLoad] Decoded %s style image from base64 (%s field)", format, ref.Kind)
		return resolved(img, format, "base64"), nil
	}
	if errors.Is(b64Err, utils.ErrImageTooLarge) {
		return nil, apperror.Load(b64Err).WithField("reference_kind", ref.Kind.String())
	}
	logrus.Debugf("🔁 [ImageLoad] base64 decode failed (%v), falling back to URL fetch", b64Err)

	img, format, err := l.fetch(ctx, raw)
	if err != nil {
		return nil, apperror.Load(err).WithField("reference_kind", ref.Kind.String())
	}

	logrus.Debugf("🖼️  [ImageLoad] Fetched %s style image from URL", format)
	return resolved(img, format, "url"), nil
}

func resolved(img image.Image, format, origin string) *ResolvedImage {
	rgb := utils.ToRGB(img)
	return &ResolvedImage{
		Image:  rgb,
		Width:  rgb.Bounds().Dx(),
		Height: rgb.Bounds().Dy(),
		Format: format,
		Origin: origin,
	}
}

// decodeBase64Image - data URL이면 첫 번째 콤마 뒤만 payload로 사용
func decodeBase64Image(raw string, maxPixels int64) (image.Image, string, error) {
	payload := raw
	if idx := strings.Index(raw, ","); idx >= 0 {
		payload = raw[idx+1:]
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return nil, "", err
	}
	img, format, err := utils.DecodeImage(data, maxPixels)
	if errors.Is(err, utils.ErrImageTooLarge) {
		return nil, "", err
	}
	if err != nil {
		return nil, "", fmt.Errorf("decoded bytes are not an image: %w", err)
	}
	return img, format, nil
}

// decodeBase64 - 공백 무시, padding 유무 모두 허용 (standard alphabet)
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, errors.New("empty base64 payload")
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
		return raw, nil
	}
	return nil, fmt.Errorf("invalid base64: %w", err)
}

func (l *Loader) fetch(ctx context.Context, rawURL string) (image.Image, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, "", errors.New("image URL has no host")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode != http.StatusOK || !strings.Contains(strings.ToLower(contentType), "image") {
		return nil, "", fmt.Errorf("failed to fetch valid image. status: %d, content-type: %q", resp.StatusCode, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", l.maxBytes)
	}

	img, format, err := utils.DecodeImage(data, l.maxPixels)
	if errors.Is(err, utils.ErrImageTooLarge) {
		return nil, "", err
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}
