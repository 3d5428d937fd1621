package imageload

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quel-style-server/modules/common/apperror"
	"quel-style-server/modules/common/utils"
)

func createDummyImageData(t *testing.T, format string, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 20), G: uint8(y * 20), B: 100, A: 200})
		}
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		require.NoError(t, png.Encode(&buf, img))
	case "jpeg":
		require.NoError(t, jpeg.Encode(&buf, img, nil))
	default:
		t.Fatalf("unsupported format %s", format)
	}
	return buf.Bytes()
}

func newTestLoader(blockPrivate bool) *Loader {
	return NewLoader(Options{MaxBytes: 1 << 20, BlockPrivate: blockPrivate})
}

func TestResolveBase64Variants(t *testing.T) {
	pngData := createDummyImageData(t, "png", 10, 6)
	std := base64.StdEncoding.EncodeToString(pngData)

	tests := []struct {
		name  string
		value string
	}{
		{"plain", std},
		{"data url", "data:image/png;base64," + std},
		{"unpadded", strings.TrimRight(std, "=")},
		{"wrapped lines", std[:20] + "\n" + std[20:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := newTestLoader(false).Resolve(context.Background(), StyleReference{Kind: Base64Image, Value: tt.value})
			require.NoError(t, err)
			assert.Equal(t, 10, img.Width)
			assert.Equal(t, 6, img.Height)
			assert.Equal(t, "png", img.Format)
			assert.Equal(t, "base64", img.Origin)
			assert.Equal(t, uint8(255), img.Image.RGBAAt(3, 3).A, "alpha is dropped")
		})
	}
}

func TestResolveJPEG(t *testing.T) {
	data := createDummyImageData(t, "jpeg", 8, 8)
	img, err := newTestLoader(false).Resolve(context.Background(), StyleReference{
		Kind:  Base64Image,
		Value: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
	})
	require.NoError(t, err)
	assert.Equal(t, "jpeg", img.Format)
}

func TestResolveURL(t *testing.T) {
	pngData := createDummyImageData(t, "png", 12, 12)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/style.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngData)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html><body>not an image</body></html>"))
		case "/corrupt.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("definitely not png"))
		case "/huge.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(make([]byte, 2<<20))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	t.Run("image", func(t *testing.T) {
		img, err := newTestLoader(false).Resolve(context.Background(), StyleReference{Kind: ImageURL, Value: srv.URL + "/style.png"})
		require.NoError(t, err)
		assert.Equal(t, 12, img.Width)
		assert.Equal(t, "url", img.Origin)
	})

	failures := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"html page", "/page.html", "content-type"},
		{"not found", "/missing.png", "status: 404"},
		{"corrupt bytes", "/corrupt.png", "failed to decode image"},
		{"too large", "/huge.png", "exceeds"},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestLoader(false).Resolve(context.Background(), StyleReference{Kind: ImageURL, Value: srv.URL + tt.path})
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindLoad))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveRejectsOversizedDimensions(t *testing.T) {
	// 40x30 = 1200 pixels, 한도는 1000
	pngData := createDummyImageData(t, "png", 40, 30)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	}))
	defer srv.Close()

	loader := NewLoader(Options{MaxBytes: 1 << 20, MaxPixels: 1000})

	refs := []struct {
		name string
		ref  StyleReference
	}{
		{"base64", StyleReference{Kind: Base64Image, Value: base64.StdEncoding.EncodeToString(pngData)}},
		{"data url", StyleReference{Kind: Base64Image, Value: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)}},
		{"url", StyleReference{Kind: ImageURL, Value: srv.URL + "/big.png"}},
	}
	for _, tt := range refs {
		t.Run(tt.name, func(t *testing.T) {
			img, err := loader.Resolve(context.Background(), tt.ref)
			require.Error(t, err)
			assert.Nil(t, img)
			assert.True(t, apperror.Is(err, apperror.KindLoad))
			assert.ErrorIs(t, err, utils.ErrImageTooLarge)
			assert.Contains(t, err.Error(), "40x30")
		})
	}

	t.Run("within limit", func(t *testing.T) {
		img, err := NewLoader(Options{MaxBytes: 1 << 20, MaxPixels: 1200}).Resolve(context.Background(), refs[0].ref)
		require.NoError(t, err)
		assert.Equal(t, 40, img.Width)
	})
}

func TestResolveMalformedInput(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr string
	}{
		{"garbage without comma", "not base64 at all!", "unsupported URL scheme"},
		{"base64 of text", base64.StdEncoding.EncodeToString([]byte("hello world")), "unsupported URL scheme"},
		{"ftp url", "ftp://example.com/style.png", "unsupported URL scheme \"ftp\""},
		{"blank", "   ", "empty style reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestLoader(false).Resolve(context.Background(), StyleReference{Kind: Base64Image, Value: tt.value})
			require.Error(t, err)
			assert.Equal(t, apperror.KindLoad, apperror.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveBlocksPrivateNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach a loopback server")
	}))
	defer srv.Close()

	_, err := newTestLoader(true).Resolve(context.Background(), StyleReference{Kind: ImageURL, Value: srv.URL + "/style.png"})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindLoad))
	assert.Contains(t, err.Error(), "restricted network")
}

func TestReferenceKindString(t *testing.T) {
	assert.Equal(t, "base64", Base64Image.String())
	assert.Equal(t, "url", ImageURL.String())
}
