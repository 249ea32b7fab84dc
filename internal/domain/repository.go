package domain

import "context"

// RequestRepository defines persistence for generation requests.
type RequestRepository interface {
	// Create inserts a new request. Returns ErrDuplicate when the id already
	// exists, which absorbs duplicate delivery of the same creation event.
	Create(ctx context.Context, req *GenerationRequest) error
	GetByID(ctx context.Context, requestID string) (*GenerationRequest, error)
	// TransitionStatus moves the request forward along
	// pending -> generating -> completed|failed. A request already at or past
	// the target status is left untouched and reported via the bool result so
	// redelivered jobs can treat it as a no-op.
	TransitionStatus(ctx context.Context, requestID string, status RequestStatus) (bool, error)
	// SetEnhancedPrompt records the derived prompt used for generation.
	SetEnhancedPrompt(ctx context.Context, requestID, enhancedPrompt, model string) error
}

// ImageRepository defines persistence for generated artifacts.
type ImageRepository interface {
	// Create inserts an artifact record, skipping silently when the composite
	// key already exists (redelivered commit of the same artifact).
	Create(ctx context.Context, img *GeneratedImage) error
	Get(ctx context.Context, imageID, requestID string) (*GeneratedImage, error)
	ListByRequest(ctx context.Context, requestID string) ([]GeneratedImage, error)
	// MarkKept sets status=kept with the promoted storage key and retrieval
	// URL. Records already discarded are skipped; the bool result reports
	// whether a row actually changed.
	MarkKept(ctx context.Context, imageID, requestID, storageKey, retrievalURL string) (bool, error)
	// MarkDiscarded sets status=discarded with the same skip-terminal rule.
	MarkDiscarded(ctx context.Context, imageID, requestID string) (bool, error)
}
