package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"imagebot/internal/chat"
	"imagebot/internal/domain"
	"imagebot/internal/infra"
	"imagebot/internal/providers/image"
	"imagebot/internal/providers/prompt"
	"imagebot/internal/storage"
)

// commitConcurrency bounds parallel artifact commits within one job. Three
// images per request makes anything higher pointless.
const commitConcurrency = 2

// GenerationOptions configures the generation worker.
type GenerationOptions struct {
	ImageCount  int
	AspectRatio string
	PresignTTL  time.Duration
	// ProviderInterval spaces provider calls across concurrent jobs; the
	// shared limiter is the cap on in-flight generation pressure.
	ProviderInterval time.Duration
}

// Generation consumes the generation queue and drives a request from pending
// through generating to completed or failed, committing artifacts as it goes.
type Generation struct {
	requests  domain.RequestRepository
	images    domain.ImageRepository
	store     *storage.FileStore
	signer    *storage.URLSigner
	generator image.Generator
	poster    chat.Poster
	limiter   *rate.Limiter
	dedupe    *Dedupe
	opts      GenerationOptions
	log       infra.Logger
}

// NewGeneration wires the generation worker.
func NewGeneration(
	requests domain.RequestRepository,
	images domain.ImageRepository,
	store *storage.FileStore,
	signer *storage.URLSigner,
	generator image.Generator,
	poster chat.Poster,
	dedupe *Dedupe,
	opts GenerationOptions,
	log infra.Logger,
) *Generation {
	if opts.ImageCount <= 0 {
		opts.ImageCount = 3
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = "1:1"
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = time.Hour
	}
	interval := opts.ProviderInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Generation{
		requests:  requests,
		images:    images,
		store:     store,
		signer:    signer,
		generator: generator,
		poster:    poster,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		dedupe:    dedupe,
		opts:      opts,
		log:       log,
	}
}

// Handle is the queue entry point: decode, validate, process.
func (g *Generation) Handle(ctx context.Context, body []byte) error {
	var job domain.GenerationJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("generation job: %w: %v", domain.ErrMalformedJob, err)
	}
	if err := job.Validate(); err != nil {
		return err
	}

	dedupeKey := "done:generate:" + job.RequestID
	if g.dedupe.Done(ctx, dedupeKey) {
		g.log.Debug().Str("request_id", job.RequestID).Msg("duplicate delivery, already completed")
		return nil
	}

	if err := g.process(ctx, job); err != nil {
		return err
	}
	g.dedupe.MarkDone(ctx, dedupeKey)
	return nil
}

func (g *Generation) process(ctx context.Context, job domain.GenerationJob) error {
	req, err := g.requests.GetByID(ctx, job.RequestID)
	if err != nil {
		return fmt.Errorf("load request %s: %w", job.RequestID, err)
	}
	if req.Status.Terminal() {
		g.log.Info().Str("request_id", req.ID).Str("status", string(req.Status)).Msg("request already settled, skipping")
		return nil
	}

	if _, err := g.requests.TransitionStatus(ctx, req.ID, domain.RequestStatusGenerating); err != nil {
		return err
	}

	enhanced := prompt.Enhance(job.Prompt)
	if err := g.requests.SetEnhancedPrompt(ctx, req.ID, enhanced.Prompt, g.generator.ModelID()); err != nil {
		return g.fail(ctx, job, fmt.Errorf("record enhanced prompt: %w", err))
	}

	assets, err := g.generate(ctx, job, enhanced)
	if err != nil {
		return g.fail(ctx, job, err)
	}

	views, err := g.commitArtifacts(ctx, job, assets)
	if err != nil {
		// Artifacts committed before the failure stay valid; they are not
		// rolled back.
		return g.fail(ctx, job, err)
	}

	results := chat.ResultsMessage(job.Prompt, views)
	if postErr := g.poster.Respond(ctx, job.CallbackTarget, results); postErr != nil {
		// Best effort: a lost notification must not fail a request whose
		// artifacts are all committed.
		g.log.Error().Err(postErr).Str("request_id", req.ID).Msg("results post failed")
	}

	if _, err := g.requests.TransitionStatus(ctx, req.ID, domain.RequestStatusCompleted); err != nil {
		return err
	}
	g.log.Info().Str("request_id", req.ID).Int("images", len(views)).Msg("generation completed")
	return nil
}

// generate paces the provider call behind the shared limiter and retries
// throttling-class failures with backoff.
func (g *Generation) generate(ctx context.Context, job domain.GenerationJob, enhanced prompt.Enhanced) ([]image.Asset, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var assets []image.Asset
	err := retryTransient(ctx, func() error {
		var callErr error
		assets, callErr = g.generator.Generate(ctx, image.GenerateRequest{
			Prompt:         enhanced.Prompt,
			NegativePrompt: enhanced.Negative,
			Quantity:       g.opts.ImageCount,
			AspectRatio:    g.opts.AspectRatio,
			RequestID:      job.RequestID,
		})
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("generate images: %w", err)
	}
	return assets, nil
}

// commitArtifacts stores each buffer and creates its metadata record, in that
// order: a record must never exist before its bytes do. Commits fan out with
// a bounded group; each is independent, so a failure leaves the others valid.
func (g *Generation) commitArtifacts(ctx context.Context, job domain.GenerationJob, assets []image.Asset) ([]chat.ImageView, error) {
	views := make([]chat.ImageView, len(assets))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(commitConcurrency)
	for i, asset := range assets {
		i, asset := i, asset
		eg.Go(func() error {
			imageID := uuid.NewString()
			key := domain.TempStorageKey(job.RequestID, imageID)
			storedKey, err := g.store.Put(egCtx, key, asset.Data)
			if err != nil {
				return fmt.Errorf("store artifact: %w", err)
			}
			retrievalURL, expiry, err := g.signer.Presign(storedKey, g.opts.PresignTTL)
			if err != nil {
				return err
			}
			if err := g.images.Create(egCtx, &domain.GeneratedImage{
				ID:                 imageID,
				RequestID:          job.RequestID,
				StorageKey:         storedKey,
				Status:             domain.ImageStatusGenerated,
				RetrievalURL:       retrievalURL,
				RetrievalURLExpiry: &expiry,
			}); err != nil {
				return fmt.Errorf("record artifact: %w", err)
			}
			views[i] = chat.ImageView{ID: imageID, RequestID: job.RequestID, URL: retrievalURL}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// fail settles the request as failed, posts a best-effort notice and returns
// the original error so the queue's retry/DLQ machinery engages.
func (g *Generation) fail(ctx context.Context, job domain.GenerationJob, cause error) error {
	g.log.Error().Err(cause).Str("request_id", job.RequestID).Msg("generation failed")
	if _, err := g.requests.TransitionStatus(ctx, job.RequestID, domain.RequestStatusFailed); err != nil {
		g.log.Error().Err(err).Str("request_id", job.RequestID).Msg("failed-status transition failed")
	}
	notice := chat.FailureMessage(summarize(cause))
	if err := g.poster.Respond(ctx, job.CallbackTarget, notice); err != nil {
		g.log.Error().Err(err).Str("request_id", job.RequestID).Msg("failure notice post failed")
	}
	return cause
}

// summarize trims an internal error down to a user-presentable phrase.
func summarize(err error) string {
	if domain.IsTransient(err) {
		return "the image service is overloaded"
	}
	return "the image service rejected the request"
}
