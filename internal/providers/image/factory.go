package image

import (
	"context"
	"fmt"
	"strings"

	"imagebot/internal/secrets"
)

// Factory selects a concrete Generator from configuration at startup.
// Unknown provider ids fail loudly rather than silently falling back.
func Factory(ctx context.Context, provider string, opts GeminiOptions) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "gemini":
		if !hasAPIKey(ctx, opts.Secrets, opts.APIKeyRef) {
			return NewSyntheticGenerator(), nil
		}
		return NewGeminiGenerator(opts)
	case "synthetic":
		return NewSyntheticGenerator(), nil
	default:
		return nil, fmt.Errorf("image: unsupported provider %q", provider)
	}
}

func hasAPIKey(ctx context.Context, p secrets.Provider, ref string) bool {
	if p == nil || ref == "" {
		return false
	}
	v, err := p.Get(ctx, ref)
	return err == nil && v != ""
}
