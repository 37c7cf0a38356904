package images

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator renders product shots with DALL-E.
type OpenAIGenerator struct {
	client *openai.Client
}

func NewOpenAIGenerator(apiKey, baseURL string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(cfg)}, nil
}

func imagePrompt(title, category string) string {
	subject := title
	if category != "" {
		subject = fmt.Sprintf("%s (%s)", title, category)
	}
	return fmt.Sprintf("Professional product photography of a %s computer/technology device, clean white background, studio lighting, high quality, commercial photography style, Dell branding visible, modern and sleek design", subject)
}

func (g *OpenAIGenerator) Generate(ctx context.Context, title, category string) (string, error) {
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         imagePrompt(title, category),
		Model:          openai.CreateImageModelDallE3,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		Quality:        openai.CreateImageQualityStandard,
		Style:          openai.CreateImageStyleNatural,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("image generation returned no url")
	}
	return resp.Data[0].URL, nil
}
