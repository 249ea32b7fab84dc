package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"imagebot/internal/domain"
	"imagebot/internal/secrets"
)

const (
	geminiProviderID     = "gemini"
	geminiDefaultTimeout = 120 * time.Second
	maxImagesPerCall     = 4
)

// GeminiOptions configures the Gemini-backed generator.
type GeminiOptions struct {
	APIKeyRef  string
	Model      string
	BaseURL    string
	Secrets    secrets.Provider
	HTTPClient *http.Client
}

// GeminiGenerator calls the Gemini image generation API over HTTP. Failures
// are classified into transient and permanent via domain.ProviderError so the
// worker's retry policy can tell throttling from bad requests.
type GeminiGenerator struct {
	apiKeyRef  string
	model      string
	baseURL    string
	secrets    secrets.Provider
	httpClient *http.Client
}

// NewGeminiGenerator builds the generator.
func NewGeminiGenerator(opts GeminiOptions) (*GeminiGenerator, error) {
	if opts.Secrets == nil {
		return nil, errors.New("image: secret provider is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: geminiDefaultTimeout}
	}
	return &GeminiGenerator{
		apiKeyRef:  opts.APIKeyRef,
		model:      model,
		baseURL:    baseURL,
		secrets:    opts.Secrets,
		httpClient: httpClient,
	}, nil
}

func (g *GeminiGenerator) ProviderID() string { return geminiProviderID }
func (g *GeminiGenerator) ModelID() string    { return g.model }

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiImageConfig struct {
	NumberOfImages int    `json:"number_of_images,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
}

type geminiToolConfig struct {
	ImageGenerationConfig *geminiImageConfig `json:"image_generation_config,omitempty"`
}

type geminiGenerateRequest struct {
	Contents   []geminiContent   `json:"contents"`
	ToolConfig *geminiToolConfig `json:"tool_config,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// Generate requests up to maxImagesPerCall images in a single provider call.
func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) ([]Asset, error) {
	apiKey, err := g.secrets.Get(ctx, g.apiKeyRef)
	if err != nil {
		return nil, fmt.Errorf("image: resolve api key: %w", err)
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	if quantity > maxImagesPerCall {
		quantity = maxImagesPerCall
	}

	payload := geminiGenerateRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildImagePrompt(req)}},
		}},
		ToolConfig: &geminiToolConfig{
			ImageGenerationConfig: &geminiImageConfig{
				NumberOfImages: quantity,
				AspectRatio:    req.AspectRatio,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("image: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(g.model), url.QueryEscape(apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		// Transport failures are worth retrying; the provider may simply be
		// unreachable for a moment.
		return nil, &domain.ProviderError{Provider: geminiProviderID, Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, &domain.ProviderError{Provider: geminiProviderID, Message: err.Error(), Transient: true}
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr geminiErrorResponse
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, domain.NewProviderError(geminiProviderID, resp.StatusCode, msg)
	}

	var decoded geminiGenerateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("image: decode response: %w", err)
	}

	width, height := normalizeAspect(req.AspectRatio)
	var assets []Asset
	for _, candidate := range decoded.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil || len(data) == 0 {
				continue
			}
			format := part.InlineData.MimeType
			if format == "" {
				format = "image/png"
			}
			assets = append(assets, Asset{Data: data, Format: format, Width: width, Height: height})
		}
	}
	if len(assets) == 0 {
		return nil, domain.NewProviderError(geminiProviderID, http.StatusBadRequest, "no image candidates returned")
	}
	return assets, nil
}

func buildImagePrompt(req GenerateRequest) string {
	var b strings.Builder
	b.WriteString(req.Prompt)
	if req.NegativePrompt != "" {
		b.WriteString("\nAvoid: ")
		b.WriteString(req.NegativePrompt)
	}
	return b.String()
}

var _ Generator = (*GeminiGenerator)(nil)
