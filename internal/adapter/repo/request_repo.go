package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"imagebot/internal/domain"
)

// RequestRepositoryPG implements domain.RequestRepository.
type RequestRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewRequestRepository creates a request repository backed by PostgreSQL.
func NewRequestRepository(pool *pgxpool.Pool) *RequestRepositoryPG {
	return &RequestRepositoryPG{pool: pool}
}

// Create inserts a new request record. The conditional insert turns duplicate
// delivery of the same creation event into domain.ErrDuplicate instead of a
// second row.
func (r *RequestRepositoryPG) Create(ctx context.Context, req *domain.GenerationRequest) error {
	query := `
INSERT INTO generation_requests (id, user_id, channel_id, prompt, enhanced_prompt, status, model, callback_target, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING;
`
	tag, err := r.pool.Exec(ctx, query,
		req.ID,
		req.UserID,
		req.ChannelID,
		req.Prompt,
		req.EnhancedPrompt,
		req.Status,
		req.Model,
		req.CallbackTarget,
		req.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("create request %s: %w", req.ID, domain.ErrDuplicate)
	}
	return nil
}

// GetByID fetches a request by its identifier.
func (r *RequestRepositoryPG) GetByID(ctx context.Context, requestID string) (*domain.GenerationRequest, error) {
	query := `
SELECT id, user_id, channel_id, prompt, enhanced_prompt, status, model, callback_target, created_at, updated_at, expires_at
FROM generation_requests
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, requestID)
	var req domain.GenerationRequest
	if err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.ChannelID,
		&req.Prompt,
		&req.EnhancedPrompt,
		&req.Status,
		&req.Model,
		&req.CallbackTarget,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// TransitionStatus advances the request status. The guarded update only
// matches rows whose current status may legally precede the target, so a
// redelivered job hitting an already-advanced request affects zero rows and
// reports false instead of moving anything backward.
func (r *RequestRepositoryPG) TransitionStatus(ctx context.Context, requestID string, status domain.RequestStatus) (bool, error) {
	var allowedFrom []string
	switch status {
	case domain.RequestStatusGenerating:
		allowedFrom = []string{string(domain.RequestStatusPending)}
	case domain.RequestStatusCompleted, domain.RequestStatusFailed:
		allowedFrom = []string{string(domain.RequestStatusPending), string(domain.RequestStatusGenerating)}
	default:
		return false, fmt.Errorf("transition to %q not permitted", status)
	}
	query := `
UPDATE generation_requests
SET status = $2,
    updated_at = NOW()
WHERE id = $1 AND status = ANY($3);
`
	tag, err := r.pool.Exec(ctx, query, requestID, status, allowedFrom)
	if err != nil {
		return false, fmt.Errorf("transition request %s: %w", requestID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetEnhancedPrompt records the derived prompt and the model that will serve
// the request.
func (r *RequestRepositoryPG) SetEnhancedPrompt(ctx context.Context, requestID, enhancedPrompt, model string) error {
	query := `
UPDATE generation_requests
SET enhanced_prompt = $2,
    model = $3,
    updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, requestID, enhancedPrompt, model)
	return err
}

var _ domain.RequestRepository = (*RequestRepositoryPG)(nil)
