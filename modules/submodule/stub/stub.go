// Package stub provides fast deterministic stand-ins for the model backends,
// used for local development and tests.
package stub

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"strings"

	"quel-style-server/modules/inference"
)

// ChatModel - 입력 대화에서 프롬프트와 스타일을 뽑아 고정 형식으로 재작성
type ChatModel struct{}

func NewChatModel() *ChatModel { return &ChatModel{} }

func (m *ChatModel) Name() string { return "stub:chat" }

func (m *ChatModel) Chat(ctx context.Context, messages []inference.Message, opts inference.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	prompt, style := parseConversation(messages)
	var out string
	switch {
	case prompt == "" && style == "":
		return "", fmt.Errorf("stub chat: nothing to rewrite")
	case prompt == "":
		// 캡션 요청 (이미지만 있는 대화)
		out = style
	default:
		if style == "" {
			style = "the reference style"
		}
		out = fmt.Sprintf("%s, reimagined with %s, rich in texture with a cohesive palette and consistent lighting", prompt, style)
	}
	return limitWords(out, opts.MaxNewTokens), nil
}

func parseConversation(messages []inference.Message) (prompt, style string) {
	for _, msg := range messages {
		if msg.Role != inference.RoleUser {
			continue
		}
		for _, img := range msg.Images {
			if desc := describeColors(img); desc != "" {
				style = desc
			}
		}
		if len(msg.Images) > 0 {
			continue
		}

		content := strings.TrimSpace(msg.Content)
		if strings.HasPrefix(content, "User prompt:") {
			for _, line := range strings.Split(content, "\n") {
				switch {
				case strings.HasPrefix(line, "User prompt:"):
					prompt = strings.TrimSpace(strings.TrimPrefix(line, "User prompt:"))
				case strings.HasPrefix(line, "Style:"):
					style = strings.TrimSpace(strings.TrimPrefix(line, "Style:"))
				}
			}
			continue
		}
		if content != "" {
			prompt = content
		}
	}
	return prompt, style
}

// describeColors - 이미지 평균 색을 가장 가까운 이름으로 표현
func describeColors(data []byte) string {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	var r, g, b, n uint64
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			r += uint64(cr >> 8)
			g += uint64(cg >> 8)
			b += uint64(cb >> 8)
			n++
		}
	}
	if n == 0 {
		return ""
	}
	avg := color.RGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: 255}
	return fmt.Sprintf("soft %s tones", nearestColorName(avg))
}

var namedColors = []struct {
	name string
	c    color.RGBA
}{
	{"ivory", color.RGBA{240, 234, 214, 255}},
	{"charcoal", color.RGBA{40, 40, 45, 255}},
	{"crimson", color.RGBA{180, 30, 45, 255}},
	{"amber", color.RGBA{230, 160, 40, 255}},
	{"olive", color.RGBA{110, 120, 50, 255}},
	{"emerald", color.RGBA{40, 150, 90, 255}},
	{"teal", color.RGBA{30, 120, 130, 255}},
	{"cobalt", color.RGBA{40, 70, 170, 255}},
	{"violet", color.RGBA{120, 70, 160, 255}},
	{"rose", color.RGBA{220, 140, 160, 255}},
	{"slate", color.RGBA{110, 120, 135, 255}},
}

func nearestColorName(c color.RGBA) string {
	best, bestDist := namedColors[0].name, -1
	for _, nc := range namedColors {
		dr := int(c.R) - int(nc.c.R)
		dg := int(c.G) - int(nc.c.G)
		db := int(c.B) - int(nc.c.B)
		if d := dr*dr + dg*dg + db*db; bestDist < 0 || d < bestDist {
			best, bestDist = nc.name, d
		}
	}
	return best
}

func limitWords(s string, maxWords int) string {
	if maxWords <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ")
}

// ImageModel - 프롬프트 해시로 색을 정하는 그라디언트 PNG 생성
type ImageModel struct{}

func NewImageModel() *ImageModel { return &ImageModel{} }

func (m *ImageModel) Name() string { return "stub:image" }

func (m *ImageModel) GenerateImage(ctx context.Context, prompt string, opts inference.SynthesisOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 512
	}
	if height <= 0 {
		height = 512
	}

	h := fnv.New64a()
	h.Write([]byte(prompt))
	seed := h.Sum64()
	from := color.RGBA{uint8(seed), uint8(seed >> 8), uint8(seed >> 16), 255}
	to := color.RGBA{uint8(seed >> 24), uint8(seed >> 32), uint8(seed >> 40), 255}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			t := float64(x+y) / float64(width+height)
			img.SetRGBA(x, y, color.RGBA{
				R: lerp(from.R, to.R, t),
				G: lerp(from.G, to.G, t),
				B: lerp(from.B, to.B, t),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}

// Encoder - 이미지 해시 기반 고정 길이 벡터
type Encoder struct {
	dim int
}

func NewEncoder(dim int) *Encoder {
	if dim <= 0 {
		dim = 16
	}
	return &Encoder{dim: dim}
}

func (e *Encoder) Name() string { return "stub:encoder" }

func (e *Encoder) EncodeImage(ctx context.Context, data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("stub encoder: empty image")
	}

	vec := make([]float32, e.dim)
	block := sha256.Sum256(data)
	for i := range vec {
		if i > 0 && i%8 == 0 {
			block = sha256.Sum256(block[:])
		}
		v := binary.BigEndian.Uint32(block[(i%8)*4:])
		vec[i] = float32(v)/float32(^uint32(0))*2 - 1
	}
	return vec, nil
}
