package image

import "context"

// GenerateRequest describes a normalized request passed to any image provider.
type GenerateRequest struct {
	Prompt         string
	NegativePrompt string
	Quantity       int
	AspectRatio    string
	RequestID      string
}

// Asset represents one generated image buffer.
type Asset struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// Generator is the capability contract implemented by all image backends.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]Asset, error)
	ProviderID() string
	ModelID() string
}

// normalizeAspect maps the supported aspect ratios to pixel dimensions.
func normalizeAspect(ratio string) (int, int) {
	switch ratio {
	case "16:9":
		return 1280, 720
	case "9:16":
		return 720, 1280
	case "4:3":
		return 1024, 768
	case "3:4":
		return 768, 1024
	default:
		return 1024, 1024
	}
}
