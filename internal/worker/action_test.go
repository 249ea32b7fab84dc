package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"imagebot/internal/domain"
	"imagebot/internal/storage"
)

type actionFixture struct {
	requests *memRequests
	images   *memImages
	store    *storage.FileStore
	poster   *recordingPoster
	genQueue *recordingQueue
	action   *Action
}

func newActionFixture(t *testing.T) *actionFixture {
	t.Helper()
	store, signer := newTestStorage(t)
	f := &actionFixture{
		requests: newMemRequests(),
		images:   newMemImages(),
		store:    store,
		poster:   &recordingPoster{},
		genQueue: &recordingQueue{},
	}
	f.action = NewAction(f.requests, f.images, store, signer, f.poster, f.genQueue, nopLogger)
	return f
}

func (f *actionFixture) seedImage(t *testing.T, imageID string, status domain.ImageStatus) {
	t.Helper()
	ctx := context.Background()
	key := domain.TempStorageKey("req-1", imageID)
	if _, err := f.store.Put(ctx, key, []byte("png-"+imageID)); err != nil {
		t.Fatalf("seed artifact: %v", err)
	}
	err := f.images.Create(ctx, &domain.GeneratedImage{
		ID:         imageID,
		RequestID:  "req-1",
		StorageKey: key,
		Status:     domain.ImageStatusGenerated,
	})
	if err != nil {
		t.Fatalf("seed image record: %v", err)
	}
	if status == domain.ImageStatusDiscarded {
		if _, err := f.images.MarkDiscarded(ctx, imageID, "req-1"); err != nil {
			t.Fatalf("seed discard: %v", err)
		}
	}
	if status == domain.ImageStatusKept {
		if _, err := f.images.MarkKept(ctx, imageID, "req-1", key, "https://cdn.example.com/"+key); err != nil {
			t.Fatalf("seed keep: %v", err)
		}
	}
}

func actionJobBody(t *testing.T, job domain.ActionJob) []byte {
	t.Helper()
	body, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}
	return body
}

func TestActionKeepPromotesArtifact(t *testing.T) {
	f := newActionFixture(t)
	ctx := context.Background()
	seedRequest(t, f.requests, "req-1", domain.RequestStatusCompleted)
	f.seedImage(t, "img-1", domain.ImageStatusGenerated)

	job := domain.ActionJob{Action: domain.ActionKeep, ImageID: "img-1", RequestID: "req-1", UserID: "u1", ChannelID: "C1", CallbackTarget: "http://callback"}
	if err := f.action.Handle(ctx, actionJobBody(t, job)); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	img, err := f.images.Get(ctx, "img-1", "req-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if img.Status != domain.ImageStatusKept {
		t.Fatalf("image status = %s, want kept", img.Status)
	}
	wantKey := domain.SavedStorageKey("u1", "req-1", "img-1")
	if img.StorageKey != wantKey {
		t.Fatalf("storage key = %q, want %q", img.StorageKey, wantKey)
	}
	if !strings.HasPrefix(img.RetrievalURL, "https://cdn.example.com/") {
		t.Fatalf("retrieval url = %q, want cdn url", img.RetrievalURL)
	}
	data, err := f.store.Get(ctx, wantKey)
	if err != nil {
		t.Fatalf("promoted object missing: %v", err)
	}
	if string(data) != "png-img-1" {
		t.Fatalf("promoted bytes = %q", data)
	}
	// The temp object stays; expiry cleanup owns it.
	if _, err := f.store.Get(ctx, domain.TempStorageKey("req-1", "img-1")); err != nil {
		t.Fatalf("staging object removed: %v", err)
	}
	if f.poster.count() != 1 {
		t.Fatalf("posted %d messages, want 1 refreshed view", f.poster.count())
	}
}

func TestActionKeepRedelivery(t *testing.T) {
	f := newActionFixture(t)
	ctx := context.Background()
	seedRequest(t, f.requests, "req-1", domain.RequestStatusCompleted)
	f.seedImage(t, "img-1", domain.ImageStatusGenerated)

	job := domain.ActionJob{Action: domain.ActionKeep, ImageID: "img-1", RequestID: "req-1", UserID: "u1", ChannelID: "C1", CallbackTarget: "http://callback"}
	for i := 0; i < 2; i++ {
		if err := f.action.Handle(ctx, actionJobBody(t, job)); err != nil {
			t.Fatalf("Handle #%d returned error: %v", i+1, err)
		}
	}

	img, _ := f.images.Get(ctx, "img-1", "req-1")
	if img.Status != domain.ImageStatusKept {
		t.Fatalf("image status = %s after redelivery, want kept", img.Status)
	}
	if img.StorageKey != domain.SavedStorageKey("u1", "req-1", "img-1") {
		t.Fatalf("storage key changed on redelivery: %q", img.StorageKey)
	}
}

func TestActionKeepOnDiscardedIsNoop(t *testing.T) {
	f := newActionFixture(t)
	ctx := context.Background()
	seedRequest(t, f.requests, "req-1", domain.RequestStatusCompleted)
	f.seedImage(t, "img-1", domain.ImageStatusDiscarded)

	job := domain.ActionJob{Action: domain.ActionKeep, ImageID: "img-1", RequestID: "req-1", UserID: "u1", ChannelID: "C1", CallbackTarget: "http://callback"}
	if err := f.action.Handle(ctx, actionJobBody(t, job)); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	img, _ := f.images.Get(ctx, "img-1", "req-1")
	if img.Status != domain.ImageStatusDiscarded {
		t.Fatalf("image status = %s, discard must stick", img.Status)
	}
}

func TestActionDiscardOnKeptIsNoop(t *testing.T) {
	f := newActionFixture(t)
	ctx := context.Background()
	seedRequest(t, f.requests, "req-1", domain.RequestStatusCompleted)
	f.seedImage(t, "img-1", domain.ImageStatusKept)

	job := domain.ActionJob{Action: domain.ActionDiscard, ImageID: "img-1", RequestID: "req-1", UserID: "u1", ChannelID: "C1", CallbackTarget: "http://callback"}
	if err := f.action.Handle(ctx, actionJobBody(t, job)); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	img, _ := f.images.Get(ctx, "img-1", "req-1")
	if img.Status != domain.ImageStatusKept {
		t.Fatalf("image status = %s, keep must stick", img.Status)
	}
}

func TestActionBatchKeepSkipsSettled(t *testing.T) {
	f := newActionFixture(t)
	ctx := context.Background()
	seedRequest(t, f.requests, "req-1", domain.RequestStatusCompleted)
	f.seedImage(t, "img-1", domain.ImageStatusGenerated)
	f.seedImage(t, "img-2", domain.ImageStatusDiscarded)
	f.seedImage(t, "img-3", domain.ImageStatusKept)

	job := domain.ActionJob{Action: domain.ActionKeepAll, RequestID: "req-1", UserID: "u1", ChannelID: "C1", CallbackTarget: "http://callback"}
	if err := f.action.Handle(ctx, actionJobBody(t, job)); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	img1, _ := f.images.Get(ctx, "img-1", "req-1")
	if img1.Status != domain.ImageStatusKept {
		t.Fatalf("img-1 status = %s, want kept", img1.Status)
	}
	img2, _ := f.images.Get(ctx, "img-2", "req-1")
	if img2.Status != domain.ImageStatusDiscarded {
		t.Fatalf("img-2 status = %s, discard must survive batch keep", img2.Status)
	}
}

func TestActionRegenerateCreatesSibling(t *testing.T) {
	f := newActionFixture(t)
	ctx := context.Background()
	seedRequest(t, f.requests, "req-1", domain.RequestStatusCompleted)
	f.seedImage(t, "img-1", domain.ImageStatusGenerated)

	job := domain.ActionJob{
		Action:         domain.ActionRegenerateAll,
		RequestID:      "req-1",
		UserID:         "u1",
		ChannelID:      "C1",
		CallbackTarget: "http://callback",
		OriginalPrompt: "a red fox",
		TriggerID:      "trig-1",
	}
	if err := f.action.Handle(ctx, actionJobBody(t, job)); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(f.genQueue.payloads) != 1 {
		t.Fatalf("published %d jobs, want 1", len(f.genQueue.payloads))
	}
	published := f.genQueue.payloads[0].(domain.GenerationJob)
	if published.RequestID == "req-1" {
		t.Fatal("sibling request reused the original id")
	}
	if published.Prompt != "a red fox" {
		t.Fatalf("sibling prompt = %q", published.Prompt)
	}

	sibling, err := f.requests.GetByID(ctx, published.RequestID)
	if err != nil {
		t.Fatalf("sibling request not created: %v", err)
	}
	if sibling.Status != domain.RequestStatusPending {
		t.Fatalf("sibling status = %s, want pending", sibling.Status)
	}

	// The original request and its artifacts are untouched.
	if got := f.requests.status(t, "req-1"); got != domain.RequestStatusCompleted {
		t.Fatalf("original status = %s", got)
	}
	img, _ := f.images.Get(ctx, "img-1", "req-1")
	if img.Status != domain.ImageStatusGenerated {
		t.Fatalf("original artifact status = %s", img.Status)
	}
}

func TestActionRegenerateRedeliverySameSibling(t *testing.T) {
	f := newActionFixture(t)
	ctx := context.Background()
	seedRequest(t, f.requests, "req-1", domain.RequestStatusCompleted)

	job := domain.ActionJob{
		Action:         domain.ActionRegenerateAll,
		RequestID:      "req-1",
		UserID:         "u1",
		ChannelID:      "C1",
		CallbackTarget: "http://callback",
		OriginalPrompt: "a red fox",
		TriggerID:      "trig-1",
	}
	for i := 0; i < 2; i++ {
		if err := f.action.Handle(ctx, actionJobBody(t, job)); err != nil {
			t.Fatalf("Handle #%d returned error: %v", i+1, err)
		}
	}

	if len(f.genQueue.payloads) != 2 {
		t.Fatalf("published %d jobs, want 2", len(f.genQueue.payloads))
	}
	first := f.genQueue.payloads[0].(domain.GenerationJob)
	second := f.genQueue.payloads[1].(domain.GenerationJob)
	if first.RequestID != second.RequestID {
		t.Fatalf("redelivery forked a second sibling: %s vs %s", first.RequestID, second.RequestID)
	}
	// Only one sibling record exists; the generation worker absorbs the
	// duplicate job via its settled-request check.
	if len(f.requests.requests) != 2 {
		t.Fatalf("request records = %d, want original plus one sibling", len(f.requests.requests))
	}
}

func TestActionRefreshFailurePropagates(t *testing.T) {
	f := newActionFixture(t)
	ctx := context.Background()
	seedRequest(t, f.requests, "req-1", domain.RequestStatusCompleted)
	f.seedImage(t, "img-1", domain.ImageStatusGenerated)
	f.poster.failWith = errors.New("chat unreachable")

	job := domain.ActionJob{Action: domain.ActionDiscard, ImageID: "img-1", RequestID: "req-1", UserID: "u1", ChannelID: "C1", CallbackTarget: "http://callback"}
	if err := f.action.Handle(ctx, actionJobBody(t, job)); err == nil {
		t.Fatal("Handle succeeded despite failed view refresh")
	}

	// The action itself was applied; redelivery only retries the view push.
	img, _ := f.images.Get(ctx, "img-1", "req-1")
	if img.Status != domain.ImageStatusDiscarded {
		t.Fatalf("image status = %s, want discarded", img.Status)
	}
}

func TestActionMalformedBody(t *testing.T) {
	f := newActionFixture(t)
	err := f.action.Handle(context.Background(), []byte("{not json"))
	if !errors.Is(err, domain.ErrMalformedJob) {
		t.Fatalf("Handle error = %v, want ErrMalformedJob", err)
	}
}
