package stylegen

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"quel-style-server/modules/common/utils"
	"quel-style-server/modules/feedback"
	"quel-style-server/modules/imageload"
	"quel-style-server/modules/inference"
)

type fakeChat struct {
	mu       sync.Mutex
	calls    int
	messages [][]inference.Message
	opts     []inference.GenerateOptions
	chatFn   func(ctx context.Context, messages []inference.Message) (string, error)
}

func (f *fakeChat) Name() string { return "fake:chat" }

func (f *fakeChat) Chat(ctx context.Context, messages []inference.Message, opts inference.GenerateOptions) (string, error) {
	f.mu.Lock()
	f.calls++
	f.messages = append(f.messages, messages)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()

	if f.chatFn != nil {
		return f.chatFn(ctx, messages)
	}
	return "a rewritten prompt", nil
}

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeImageModel struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	genFn   func(ctx context.Context, prompt string, opts inference.SynthesisOptions) ([]byte, error)
}

func (f *fakeImageModel) Name() string { return "fake:image" }

func (f *fakeImageModel) GenerateImage(ctx context.Context, prompt string, opts inference.SynthesisOptions) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.genFn != nil {
		return f.genFn(ctx, prompt, opts)
	}
	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *fakeImageModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLoader struct {
	mu    sync.Mutex
	calls int
	err   error
	img   *imageload.ResolvedImage
}

func (f *fakeLoader) Resolve(ctx context.Context, ref imageload.StyleReference) (*imageload.ResolvedImage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if f.img != nil {
		return f.img, nil
	}
	return resolvedImage(32, 32), nil
}

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeArchiver struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeArchiver) Archive(ctx context.Context, jobID string, pngData []byte) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}
	return "style-results/" + jobID + ".webp", nil
}

func (f *fakeArchiver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	mu      sync.Mutex
	records []feedback.Record
	err     error
}

func (f *fakeSink) Record(ctx context.Context, rec feedback.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func resolvedImage(w, h int) *imageload.ResolvedImage {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 40, G: 70, B: 170, A: 255})
		}
	}
	return &imageload.ResolvedImage{Image: img, Width: w, Height: h, Format: "png", Origin: "base64"}
}

func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	data, err := utils.EncodePNG(resolvedImage(w, h).Image)
	require.NoError(t, err)
	return utils.ConvertImageToBase64(data)
}
