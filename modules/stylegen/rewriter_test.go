package stylegen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quel-style-server/modules/common/apperror"
	"quel-style-server/modules/inference"
)

func TestRewriterBuildsConversationPerSignal(t *testing.T) {
	seed := 42
	chat := &fakeChat{}
	r, err := NewRewriter(chat, 150, &seed)
	require.NoError(t, err)

	_, err = r.Rewrite(context.Background(), "A cat", StyleSignal{Kind: SignalImage, Image: []byte{1}})
	require.NoError(t, err)
	_, err = r.Rewrite(context.Background(), "A cat", StyleSignal{Kind: SignalText, Text: "ink wash"})
	require.NoError(t, err)
	_, err = r.Rewrite(context.Background(), "A cat", StyleSignal{Kind: SignalVector, Vector: []float32{3, 4}})
	require.NoError(t, err)

	require.Equal(t, 3, chat.callCount())
	assert.Len(t, chat.messages[0], 3)
	assert.Contains(t, chat.messages[1][0].Content, "Style: ink wash")
	assert.Contains(t, chat.messages[2][0].Content, "Style: embedding(dim=2, norm=5.0000)")

	for _, opts := range chat.opts {
		assert.Equal(t, 150, opts.MaxNewTokens)
		assert.Equal(t, float32(0), opts.Temperature)
		assert.Equal(t, 1, opts.TopK)
		require.NotNil(t, opts.Seed)
		assert.Equal(t, 42, *opts.Seed)
	}
}

func TestRewriterCleansOutput(t *testing.T) {
	chat := &fakeChat{chatFn: func(ctx context.Context, messages []inference.Message) (string, error) {
		return "<s>Assistant:  A cat drawn in ink wash</s>\n", nil
	}}
	r, err := NewRewriter(chat, 0, nil)
	require.NoError(t, err)

	out, err := r.Rewrite(context.Background(), "A cat", StyleSignal{Kind: SignalText, Text: "ink wash"})
	require.NoError(t, err)
	assert.Equal(t, "A cat drawn in ink wash", out)
	assert.Equal(t, 150, chat.opts[0].MaxNewTokens)
	assert.Nil(t, chat.opts[0].Seed)
}

func TestRewriterFailuresAreGenerationErrors(t *testing.T) {
	chat := &fakeChat{chatFn: func(ctx context.Context, messages []inference.Message) (string, error) {
		return "", errors.New("CUDA out of memory")
	}}
	r, err := NewRewriter(chat, 150, nil)
	require.NoError(t, err)

	_, err = r.Rewrite(context.Background(), "A cat", StyleSignal{Kind: SignalText, Text: "x"})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindGeneration))
	assert.Contains(t, err.Error(), "CUDA out of memory")

	_, err = r.Rewrite(context.Background(), "A cat", StyleSignal{Kind: SignalVector})
	assert.True(t, apperror.Is(err, apperror.KindGeneration))
	assert.Equal(t, 1, chat.callCount(), "empty vector never reaches the model")
}
