package ideation

import (
	"bytes"
	"context"
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
	geminiDefaultTimeout = 60 * time.Second
)

// Answer is a structured ideation result.
type Answer struct {
	Text  string
	Model string
}

// Responder is the capability contract for reasoning/search backends.
type Responder interface {
	Respond(ctx context.Context, question string) (*Answer, error)
	ProviderID() string
	ModelID() string
}

// GeminiOptions configures the Gemini-backed responder.
type GeminiOptions struct {
	APIKeyRef  string
	Model      string
	BaseURL    string
	Secrets    secrets.Provider
	HTTPClient *http.Client
}

// GeminiResponder answers free-form ideation questions with a single text
// completion call.
type GeminiResponder struct {
	apiKeyRef  string
	model      string
	baseURL    string
	secrets    secrets.Provider
	httpClient *http.Client
}

// NewGeminiResponder builds the responder.
func NewGeminiResponder(opts GeminiOptions) (*GeminiResponder, error) {
	if opts.Secrets == nil {
		return nil, errors.New("ideation: secret provider is required")
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
	return &GeminiResponder{
		apiKeyRef:  opts.APIKeyRef,
		model:      model,
		baseURL:    baseURL,
		secrets:    opts.Secrets,
		httpClient: httpClient,
	}, nil
}

func (g *GeminiResponder) ProviderID() string { return geminiProviderID }
func (g *GeminiResponder) ModelID() string    { return g.model }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Respond sends the question and returns the first text candidate.
func (g *GeminiResponder) Respond(ctx context.Context, question string) (*Answer, error) {
	apiKey, err := g.secrets.Get(ctx, g.apiKeyRef)
	if err != nil {
		return nil, fmt.Errorf("ideation: resolve api key: %w", err)
	}

	payload := geminiRequest{Contents: []geminiContent{{
		Role:  "user",
		Parts: []geminiPart{{Text: question}},
	}}}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ideation: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(g.model), url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Provider: geminiProviderID, Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &domain.ProviderError{Provider: geminiProviderID, Message: err.Error(), Transient: true}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewProviderError(geminiProviderID, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("ideation: decode response: %w", err)
	}
	for _, candidate := range decoded.Candidates {
		for _, part := range candidate.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return &Answer{Text: strings.TrimSpace(part.Text), Model: g.model}, nil
			}
		}
	}
	return nil, domain.NewProviderError(geminiProviderID, http.StatusBadRequest, "no text candidates returned")
}

var _ Responder = (*GeminiResponder)(nil)
