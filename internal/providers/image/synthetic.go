package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

// SyntheticGenerator produces deterministic placeholder images. It keeps the
// whole pipeline (storage, metadata, curation, callbacks) exercisable in
// local and CI environments where no provider API key is configured.
type SyntheticGenerator struct{}

func NewSyntheticGenerator() *SyntheticGenerator {
	return &SyntheticGenerator{}
}

func (s *SyntheticGenerator) ProviderID() string { return "synthetic" }
func (s *SyntheticGenerator) ModelID() string    { return "synthetic-v1" }

// Generate renders req.Quantity flat-color PNGs seeded from the request id
// and prompt, so the same request always yields the same bytes.
func (s *SyntheticGenerator) Generate(ctx context.Context, req GenerateRequest) ([]Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	width, height := normalizeAspect(req.AspectRatio)
	assets := make([]Asset, 0, quantity)
	for i := 0; i < quantity; i++ {
		seed := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", req.RequestID, req.Prompt, i)))
		data, err := renderFlatPNG(width, height, seed[:])
		if err != nil {
			return nil, fmt.Errorf("image: render synthetic: %w", err)
		}
		assets = append(assets, Asset{Data: data, Format: "image/png", Width: width, Height: height})
	}
	return assets, nil
}

func renderFlatPNG(width, height int, seed []byte) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill := color.RGBA{R: seed[0], G: seed[1], B: seed[2], A: 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)
	// A contrasting stripe makes the three variants distinguishable at a
	// glance in the chat view.
	stripe := color.RGBA{R: seed[3], G: seed[4], B: seed[5], A: 255}
	stripeRect := image.Rect(0, height/3, width, height/3+height/8)
	draw.Draw(img, stripeRect, &image.Uniform{C: stripe}, image.Point{}, draw.Src)

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ Generator = (*SyntheticGenerator)(nil)
