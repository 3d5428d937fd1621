package stylegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quel-style-server/modules/inference"
)

func TestFusedConversation(t *testing.T) {
	img := []byte{0xff, 0xd8, 0xff}
	msgs := FusedConversation("A wizard in a forest", img)

	require.Len(t, msgs, 3)
	assert.Equal(t, inference.RoleUser, msgs[0].Role)
	assert.Equal(t, "Rewrite the prompt to match the style, colors, and theme of this reference image: "+
		"<image_placeholder>; be verbose and detailed while maintaining fidelity to the original prompt", msgs[0].Content)
	require.Len(t, msgs[0].Images, 1)
	assert.Equal(t, img, msgs[0].Images[0])

	assert.Equal(t, inference.RoleUser, msgs[1].Role)
	assert.Equal(t, "A wizard in a forest", msgs[1].Content)
	assert.Empty(t, msgs[1].Images)

	assert.Equal(t, inference.RoleAssistant, msgs[2].Role)
	assert.Empty(t, msgs[2].Content)
}

func TestTemplateConversation(t *testing.T) {
	msgs := TemplateConversation("A cat", "soft pastel brushstrokes")

	require.Len(t, msgs, 2)
	assert.Equal(t, "User prompt: A cat\nStyle: soft pastel brushstrokes\n\n"+
		"Rewrite the prompt to match the style. Be verbose and detailed while maintaining fidelity "+
		"to the original prompt. Return only the new prompt.", msgs[0].Content)
	assert.Equal(t, inference.RoleAssistant, msgs[1].Role)
}

func TestFormatVector(t *testing.T) {
	t.Run("short vector", func(t *testing.T) {
		assert.Equal(t, "embedding(dim=2, norm=5.0000): [3.0000, 4.0000]", FormatVector([]float32{3, 4}))
	})

	t.Run("long vector is truncated", func(t *testing.T) {
		vec := make([]float32, 768)
		vec[0] = 1
		out := FormatVector(vec)
		assert.True(t, strings.HasPrefix(out, "embedding(dim=768, norm=1.0000): [1.0000, 0.0000"))
		assert.True(t, strings.HasSuffix(out, ", ...]"))
		assert.Equal(t, 16, strings.Count(out, "0000,")+strings.Count(out, "0000]"))
	})
}

func TestCleanGenerated(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  a misty forest  ", "a misty forest"},
		{"chat tokens", "<|begin_of_text|>a misty forest<|eot_id|>", "a misty forest"},
		{"sentence tokens", "<s> a misty forest</s>", "a misty forest"},
		{"fullwidth bars", "<｜end▁of▁sentence｜>a misty forest", "a misty forest"},
		{"placeholder", "<image_placeholder>a misty forest", "a misty forest"},
		{"assistant prefix", "Assistant: a misty forest", "a misty forest"},
		{"inst markers", "[INST] a misty forest [/INST]", "a misty forest"},
		{"only tokens", "<|im_end|></s>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanGenerated(tt.in))
		})
	}
}
