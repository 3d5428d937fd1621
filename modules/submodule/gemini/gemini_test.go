package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"quel-style-server/modules/inference"
)

type fakeGenerator struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeGenerator) GenerateContentWithRetry(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func textResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: "model", Parts: parts},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

var jpegMagic = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func TestChatBuildsConversation(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(genai.NewPartFromText("A wizard, painted in watercolor"))}
	model, err := NewChatModel(gen, "gemini-2.5-flash")
	require.NoError(t, err)

	seed := 7
	opts := inference.Greedy(150)
	opts.Seed = &seed

	out, err := model.Chat(context.Background(), []inference.Message{
		{Role: inference.RoleUser, Content: "Match this image: " + inference.ImagePlaceholder + "; be verbose", Images: [][]byte{jpegMagic}},
		{Role: inference.RoleUser, Content: "A wizard"},
		{Role: inference.RoleAssistant},
	}, opts)
	require.NoError(t, err)
	assert.Equal(t, "A wizard, painted in watercolor", out)

	require.Len(t, gen.contents, 1, "consecutive user turns are merged")
	parts := gen.contents[0].Parts
	require.Len(t, parts, 4)
	assert.Equal(t, "Match this image:", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
	assert.Equal(t, "; be verbose", parts[2].Text)
	assert.Equal(t, "A wizard", parts[3].Text)

	assert.Equal(t, "gemini-2.5-flash", gen.model)
	assert.Equal(t, int32(150), gen.config.MaxOutputTokens)
	require.NotNil(t, gen.config.Temperature)
	assert.Zero(t, *gen.config.Temperature)
	require.NotNil(t, gen.config.TopK)
	assert.Equal(t, float32(1), *gen.config.TopK)
	require.NotNil(t, gen.config.Seed)
	assert.Equal(t, int32(7), *gen.config.Seed)
}

func TestChatSkipsThoughts(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(
		&genai.Part{Text: "thinking...", Thought: true},
		genai.NewPartFromText("final"),
	)}
	model, err := NewChatModel(gen, "m")
	require.NoError(t, err)

	out, err := model.Chat(context.Background(), []inference.Message{{Role: inference.RoleUser, Content: "hi"}}, inference.Greedy(10))
	require.NoError(t, err)
	assert.Equal(t, "final", out)
}

func TestChatErrors(t *testing.T) {
	t.Run("client error", func(t *testing.T) {
		model, _ := NewChatModel(&fakeGenerator{err: errors.New("permission denied")}, "m")
		_, err := model.Chat(context.Background(), []inference.Message{{Role: inference.RoleUser, Content: "hi"}}, inference.Greedy(10))
		assert.ErrorContains(t, err, "permission denied")
	})

	t.Run("blocked prompt", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: "SAFETY"},
		}
		model, _ := NewChatModel(&fakeGenerator{resp: resp}, "m")
		_, err := model.Chat(context.Background(), []inference.Message{{Role: inference.RoleUser, Content: "hi"}}, inference.Greedy(10))
		assert.ErrorContains(t, err, "prompt blocked: SAFETY")
	})

	t.Run("no candidates", func(t *testing.T) {
		model, _ := NewChatModel(&fakeGenerator{resp: &genai.GenerateContentResponse{}}, "m")
		_, err := model.Chat(context.Background(), []inference.Message{{Role: inference.RoleUser, Content: "hi"}}, inference.Greedy(10))
		assert.ErrorContains(t, err, "no candidates")
	})

	t.Run("empty conversation", func(t *testing.T) {
		model, _ := NewChatModel(&fakeGenerator{}, "m")
		_, err := model.Chat(context.Background(), []inference.Message{{Role: inference.RoleAssistant}}, inference.Greedy(10))
		assert.ErrorContains(t, err, "empty conversation")
	})
}

func TestNewChatModelRequiresClient(t *testing.T) {
	_, err := NewChatModel(nil, "m")
	assert.Error(t, err)
	_, err = NewChatModel(&fakeGenerator{}, "")
	assert.Error(t, err)
}

func TestGenerateImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nrest")
	gen := &fakeGenerator{resp: textResponse(
		genai.NewPartFromText("Here is your image"),
		&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: png}},
	)}
	model, err := NewImageModel(gen, "gemini-2.5-flash-image")
	require.NoError(t, err)

	out, err := model.GenerateImage(context.Background(), "a castle", inference.SynthesisOptions{Steps: 30, Width: 1024, Height: 1024})
	require.NoError(t, err)
	assert.Equal(t, png, out)
	assert.Equal(t, "1:1", gen.config.ImageConfig.AspectRatio)
	assert.Equal(t, "a castle", gen.contents[0].Parts[0].Text)
}

func TestGenerateImageWithoutImage(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(genai.NewPartFromText("I cannot draw that"))}
	model, err := NewImageModel(gen, "m")
	require.NoError(t, err)

	_, err = model.GenerateImage(context.Background(), "a castle", inference.SynthesisOptions{})
	assert.ErrorContains(t, err, "no image generated")
}

func TestAspectRatio(t *testing.T) {
	assert.Equal(t, "1:1", aspectRatio(1024, 1024))
	assert.Equal(t, "16:9", aspectRatio(1920, 1080))
	assert.Equal(t, "9:16", aspectRatio(1080, 1920))
	assert.Equal(t, "4:3", aspectRatio(1024, 768))
	assert.Equal(t, "1:1", aspectRatio(0, 0))
}
