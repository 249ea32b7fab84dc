package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"imagebot/internal/chat"
	"imagebot/internal/domain"
	"imagebot/internal/providers/image"
	"imagebot/internal/storage"
)

var nopLogger = zerolog.Nop()

// memRequests is an in-memory RequestRepository with the same transition
// semantics as the Postgres implementation.
type memRequests struct {
	mu       sync.Mutex
	requests map[string]*domain.GenerationRequest
}

func newMemRequests() *memRequests {
	return &memRequests{requests: map[string]*domain.GenerationRequest{}}
}

func (m *memRequests) Create(_ context.Context, req *domain.GenerationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.ID]; ok {
		return domain.ErrDuplicate
	}
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *memRequests) GetByID(_ context.Context, requestID string) (*domain.GenerationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	cp := *req
	return &cp, nil
}

func (m *memRequests) TransitionStatus(_ context.Context, requestID string, status domain.RequestStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		return false, nil
	}
	if !req.Status.CanTransition(status) {
		return false, nil
	}
	req.Status = status
	return true, nil
}

func (m *memRequests) SetEnhancedPrompt(_ context.Context, requestID, enhancedPrompt, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	req.EnhancedPrompt = enhancedPrompt
	req.Model = model
	return nil
}

func (m *memRequests) status(t *testing.T, requestID string) domain.RequestStatus {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		t.Fatalf("request %s not found", requestID)
	}
	return req.Status
}

// memImages is an in-memory ImageRepository with the skip-terminal rules of
// the Postgres implementation.
type memImages struct {
	mu     sync.Mutex
	images map[string]*domain.GeneratedImage
}

func newMemImages() *memImages {
	return &memImages{images: map[string]*domain.GeneratedImage{}}
}

func imageKey(imageID, requestID string) string { return requestID + "/" + imageID }

func (m *memImages) Create(_ context.Context, img *domain.GeneratedImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := imageKey(img.ID, img.RequestID)
	if _, ok := m.images[key]; ok {
		return nil
	}
	cp := *img
	m.images[key] = &cp
	return nil
}

func (m *memImages) Get(_ context.Context, imageID, requestID string) (*domain.GeneratedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[imageKey(imageID, requestID)]
	if !ok {
		return nil, fmt.Errorf("image %s/%s: %w", requestID, imageID, domain.ErrNotFound)
	}
	cp := *img
	return &cp, nil
}

func (m *memImages) ListByRequest(_ context.Context, requestID string) ([]domain.GeneratedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.GeneratedImage
	for _, img := range m.images {
		if img.RequestID == requestID {
			out = append(out, *img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memImages) MarkKept(_ context.Context, imageID, requestID, storageKey, retrievalURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[imageKey(imageID, requestID)]
	if !ok || img.Status == domain.ImageStatusDiscarded {
		return false, nil
	}
	img.Status = domain.ImageStatusKept
	img.StorageKey = storageKey
	img.RetrievalURL = retrievalURL
	img.RetrievalURLExpiry = nil
	return true, nil
}

func (m *memImages) MarkDiscarded(_ context.Context, imageID, requestID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[imageKey(imageID, requestID)]
	if !ok || img.Status == domain.ImageStatusKept {
		return false, nil
	}
	img.Status = domain.ImageStatusDiscarded
	return true, nil
}

// recordingPoster captures every outbound message.
type recordingPoster struct {
	mu       sync.Mutex
	messages []chat.Message
	failWith error
}

func (p *recordingPoster) PostMessage(_ context.Context, _ string, msg chat.Message) (string, error) {
	return "", p.record(msg)
}

func (p *recordingPoster) Respond(_ context.Context, _ string, msg chat.Message) error {
	return p.record(msg)
}

func (p *recordingPoster) record(msg chat.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPoster) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func (p *recordingPoster) last(t *testing.T) chat.Message {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		t.Fatal("no messages posted")
	}
	return p.messages[len(p.messages)-1]
}

// stubGenerator returns canned assets or a canned error.
type stubGenerator struct {
	assets []image.Asset
	err    error
	calls  int
}

func (g *stubGenerator) Generate(_ context.Context, _ image.GenerateRequest) ([]image.Asset, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.assets, nil
}

func (g *stubGenerator) ProviderID() string { return "stub" }
func (g *stubGenerator) ModelID() string    { return "stub-model" }

// recordingQueue captures published payloads.
type recordingQueue struct {
	mu       sync.Mutex
	payloads []any
	failWith error
}

func (q *recordingQueue) Publish(_ context.Context, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failWith != nil {
		return q.failWith
	}
	q.payloads = append(q.payloads, payload)
	return nil
}

func newTestStorage(t *testing.T) (*storage.FileStore, *storage.URLSigner) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	signer, err := storage.NewURLSigner("test-secret", "http://localhost:8080/files", "https://cdn.example.com")
	if err != nil {
		t.Fatalf("NewURLSigner returned error: %v", err)
	}
	return store, signer
}
