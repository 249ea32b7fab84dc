package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"imagebot/internal/chat"
	"imagebot/internal/domain"
	"imagebot/internal/infra"
	"imagebot/internal/storage"
)

// batchConcurrency bounds parallel per-artifact work inside one batch action.
const batchConcurrency = 3

// regenNamespace seeds deterministic sibling request ids for regeneration, so
// a redelivered regenerate job recreates the same request instead of forking
// a new one per delivery.
var regenNamespace = uuid.MustParse("9f2c1d5a-4b4b-4f0e-9a6e-c7d1f3b8a002")

// Enqueuer publishes a payload onto a queue. Satisfied by rabbitmq.Publisher.
type Enqueuer interface {
	Publish(ctx context.Context, payload any) error
}

// Action consumes the action queue and applies curation actions to artifacts:
// keep (promote to permanent storage), discard, their batch forms, and
// regeneration. Every handler tolerates redelivery: terminal records are
// skipped and promotions re-copy to the same destination.
type Action struct {
	requests domain.RequestRepository
	images   domain.ImageRepository
	store    *storage.FileStore
	signer   *storage.URLSigner
	poster   chat.Poster
	genQueue Enqueuer
	log      infra.Logger
}

// NewAction wires the action worker.
func NewAction(
	requests domain.RequestRepository,
	images domain.ImageRepository,
	store *storage.FileStore,
	signer *storage.URLSigner,
	poster chat.Poster,
	genQueue Enqueuer,
	log infra.Logger,
) *Action {
	return &Action{
		requests: requests,
		images:   images,
		store:    store,
		signer:   signer,
		poster:   poster,
		genQueue: genQueue,
		log:      log,
	}
}

// Handle is the queue entry point: decode, validate, dispatch on action type.
func (a *Action) Handle(ctx context.Context, body []byte) error {
	var job domain.ActionJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("action job: %w: %v", domain.ErrMalformedJob, err)
	}
	if err := job.Validate(); err != nil {
		return err
	}

	var err error
	switch job.Action {
	case domain.ActionKeep:
		err = a.keep(ctx, job, job.ImageID)
	case domain.ActionDiscard:
		err = a.discard(ctx, job, job.ImageID)
	case domain.ActionKeepAll:
		err = a.batch(ctx, job, domain.ActionKeep)
	case domain.ActionDiscardAll:
		err = a.batch(ctx, job, domain.ActionDiscard)
	case domain.ActionRegenerateAll:
		err = a.regenerate(ctx, job)
	default:
		err = fmt.Errorf("action job: %w: unknown action %q", domain.ErrMalformedJob, job.Action)
	}
	if err != nil {
		return err
	}

	if job.Action != domain.ActionRegenerateAll {
		return a.refreshView(ctx, job)
	}
	return nil
}

// keep promotes one artifact to permanent storage and marks it kept. Running
// it again re-copies to the same destination and rewrites the same status, so
// redelivery is harmless.
func (a *Action) keep(ctx context.Context, job domain.ActionJob, imageID string) error {
	img, err := a.images.Get(ctx, imageID, job.RequestID)
	if err != nil {
		return fmt.Errorf("keep %s/%s: %w", job.RequestID, imageID, err)
	}
	if img.Status == domain.ImageStatusDiscarded {
		a.log.Info().Str("image_id", imageID).Msg("keep on discarded artifact, skipping")
		return nil
	}

	dstKey := domain.SavedStorageKey(job.UserID, job.RequestID, imageID)
	if _, err := a.store.Copy(ctx, img.StorageKey, dstKey); err != nil {
		return fmt.Errorf("promote artifact %s: %w", imageID, err)
	}
	publicURL, err := a.signer.PublicURL(dstKey)
	if err != nil {
		return err
	}
	if _, err := a.images.MarkKept(ctx, imageID, job.RequestID, dstKey, publicURL); err != nil {
		return err
	}
	return nil
}

// discard retires one artifact. The storage object stays put; expiry-based
// cleanup reclaims it later.
func (a *Action) discard(ctx context.Context, job domain.ActionJob, imageID string) error {
	if _, err := a.images.MarkDiscarded(ctx, imageID, job.RequestID); err != nil {
		return err
	}
	return nil
}

// batch applies keep or discard to every artifact still in generated status.
// Skipping terminal records is what makes the batch idempotent and safe to
// interleave with individual actions on the same request.
func (a *Action) batch(ctx context.Context, job domain.ActionJob, action domain.ActionType) error {
	images, err := a.images.ListByRequest(ctx, job.RequestID)
	if err != nil {
		return fmt.Errorf("list artifacts for %s: %w", job.RequestID, err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(batchConcurrency)
	for _, img := range images {
		if img.Status.Terminal() {
			continue
		}
		img := img
		eg.Go(func() error {
			if action == domain.ActionKeep {
				return a.keep(egCtx, job, img.ID)
			}
			return a.discard(egCtx, job, img.ID)
		})
	}
	return eg.Wait()
}

// regenerate creates a sibling request with the original prompt and feeds it
// back into the generation queue. The original request and its artifacts are
// left untouched.
func (a *Action) regenerate(ctx context.Context, job domain.ActionJob) error {
	newID := uuid.NewString()
	if job.TriggerID != "" {
		newID = uuid.NewSHA1(regenNamespace, []byte(job.RequestID+":"+job.TriggerID)).String()
	}

	err := a.requests.Create(ctx, &domain.GenerationRequest{
		ID:             newID,
		UserID:         job.UserID,
		ChannelID:      job.ChannelID,
		Prompt:         job.OriginalPrompt,
		Status:         domain.RequestStatusPending,
		CallbackTarget: job.CallbackTarget,
	})
	if err != nil && !isDuplicate(err) {
		return fmt.Errorf("create sibling request: %w", err)
	}

	if err := a.genQueue.Publish(ctx, domain.GenerationJob{
		RequestID:      newID,
		UserID:         job.UserID,
		ChannelID:      job.ChannelID,
		Prompt:         job.OriginalPrompt,
		CallbackTarget: job.CallbackTarget,
	}); err != nil {
		return fmt.Errorf("enqueue sibling job: %w", err)
	}

	if err := a.poster.Respond(ctx, job.CallbackTarget, chat.RegeneratingMessage(job.OriginalPrompt)); err != nil {
		a.log.Error().Err(err).Str("request_id", newID).Msg("regenerating notice post failed")
	}
	a.log.Info().Str("original_request_id", job.RequestID).Str("request_id", newID).Msg("regeneration enqueued")
	return nil
}

// refreshView rebuilds the whole results message from current record state
// and rewrites it in place at the callback target.
func (a *Action) refreshView(ctx context.Context, job domain.ActionJob) error {
	req, err := a.requests.GetByID(ctx, job.RequestID)
	if err != nil {
		return fmt.Errorf("load request %s: %w", job.RequestID, err)
	}
	images, err := a.images.ListByRequest(ctx, job.RequestID)
	if err != nil {
		return fmt.Errorf("list artifacts for %s: %w", job.RequestID, err)
	}

	views := make([]chat.ImageView, 0, len(images))
	for _, img := range images {
		view := chat.ImageView{
			ID:        img.ID,
			RequestID: img.RequestID,
			URL:       img.RetrievalURL,
			Kept:      img.Status == domain.ImageStatusKept,
			Discarded: img.Status == domain.ImageStatusDiscarded,
		}
		views = append(views, view)
	}
	return a.poster.Respond(ctx, job.CallbackTarget, chat.ResultsMessage(req.Prompt, views))
}

func isDuplicate(err error) bool {
	return errors.Is(err, domain.ErrDuplicate)
}
