package stylegen

import (
	"image"

	"quel-style-server/modules/common/apperror"
	"quel-style-server/modules/common/utils"
)

// Encode - PNG 직렬화 후 base64 (PNG 바이트는 아카이브용으로 함께 반환)
func Encode(img image.Image, prompt string) (*GenerationOutput, []byte, error) {
	if img == nil {
		return nil, nil, apperror.Internal("failed to encode generated image", nil)
	}

	pngData, err := utils.EncodePNG(img)
	if err != nil {
		return nil, nil, apperror.Internal("failed to encode generated image", err)
	}

	return &GenerationOutput{
		PromptFinal: prompt,
		ImageB64:    utils.ConvertImageToBase64(pngData),
	}, pngData, nil
}
