package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"imagebot/internal/domain"
)

// ImageRepositoryPG implements domain.ImageRepository.
type ImageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewImageRepository creates an image repository backed by PostgreSQL.
func NewImageRepository(pool *pgxpool.Pool) *ImageRepositoryPG {
	return &ImageRepositoryPG{pool: pool}
}

// Create inserts an artifact record. A redelivered commit of the same
// artifact hits the composite-key conflict and is silently absorbed.
func (r *ImageRepositoryPG) Create(ctx context.Context, img *domain.GeneratedImage) error {
	query := `
INSERT INTO generated_images (id, request_id, storage_key, status, retrieval_url, retrieval_url_expiry)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id, request_id) DO NOTHING;
`
	_, err := r.pool.Exec(ctx, query,
		img.ID,
		img.RequestID,
		img.StorageKey,
		img.Status,
		nullableString(img.RetrievalURL),
		img.RetrievalURLExpiry,
	)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	return nil
}

// Get fetches one artifact record by its composite key.
func (r *ImageRepositoryPG) Get(ctx context.Context, imageID, requestID string) (*domain.GeneratedImage, error) {
	query := `
SELECT id, request_id, storage_key, status, COALESCE(retrieval_url, ''), retrieval_url_expiry, created_at
FROM generated_images
WHERE id = $1 AND request_id = $2;
`
	row := r.pool.QueryRow(ctx, query, imageID, requestID)
	img, err := scanImage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return img, nil
}

// ListByRequest returns all artifacts belonging to a request in creation
// order, which keeps the rebuilt results view stable.
func (r *ImageRepositoryPG) ListByRequest(ctx context.Context, requestID string) ([]domain.GeneratedImage, error) {
	query := `
SELECT id, request_id, storage_key, status, COALESCE(retrieval_url, ''), retrieval_url_expiry, created_at
FROM generated_images
WHERE request_id = $1
ORDER BY created_at, id;
`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list images for %s: %w", requestID, err)
	}
	defer rows.Close()
	var images []domain.GeneratedImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

// MarkKept promotes an artifact to kept with its permanent storage key and
// retrieval URL. Discarded records never match; re-keeping an already-kept
// record rewrites the same values, so the operation is idempotent either way.
func (r *ImageRepositoryPG) MarkKept(ctx context.Context, imageID, requestID, storageKey, retrievalURL string) (bool, error) {
	query := `
UPDATE generated_images
SET status = $3,
    storage_key = $4,
    retrieval_url = $5
WHERE id = $1 AND request_id = $2 AND status <> $6;
`
	tag, err := r.pool.Exec(ctx, query,
		imageID,
		requestID,
		domain.ImageStatusKept,
		storageKey,
		nullableString(retrievalURL),
		domain.ImageStatusDiscarded,
	)
	if err != nil {
		return false, fmt.Errorf("mark kept %s/%s: %w", requestID, imageID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkDiscarded retires an artifact. Kept records never match; the storage
// object is reclaimed by expiry-based cleanup, not here.
func (r *ImageRepositoryPG) MarkDiscarded(ctx context.Context, imageID, requestID string) (bool, error) {
	query := `
UPDATE generated_images
SET status = $3
WHERE id = $1 AND request_id = $2 AND status <> $4;
`
	tag, err := r.pool.Exec(ctx, query,
		imageID,
		requestID,
		domain.ImageStatusDiscarded,
		domain.ImageStatusKept,
	)
	if err != nil {
		return false, fmt.Errorf("mark discarded %s/%s: %w", requestID, imageID, err)
	}
	return tag.RowsAffected() > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*domain.GeneratedImage, error) {
	var img domain.GeneratedImage
	if err := row.Scan(
		&img.ID,
		&img.RequestID,
		&img.StorageKey,
		&img.Status,
		&img.RetrievalURL,
		&img.RetrievalURLExpiry,
		&img.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &img, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ domain.ImageRepository = (*ImageRepositoryPG)(nil)
