package domain

import (
	"fmt"
	"time"
)

// ImageStatus enumerates artifact lifecycle states.
type ImageStatus string

const (
	ImageStatusGenerated ImageStatus = "generated"
	ImageStatusKept      ImageStatus = "kept"
	ImageStatusDiscarded ImageStatus = "discarded"
)

// Terminal reports whether the artifact has been curated. Terminal artifacts
// never re-enter the generated state.
func (s ImageStatus) Terminal() bool {
	return s == ImageStatusKept || s == ImageStatusDiscarded
}

// GeneratedImage represents one stored artifact belonging to a request.
// A record exists only after the artifact bytes are durably stored.
type GeneratedImage struct {
	ID                 string
	RequestID          string
	StorageKey         string
	Status             ImageStatus
	RetrievalURL       string
	RetrievalURLExpiry *time.Time
	CreatedAt          time.Time
}

// TempStorageKey returns the staging location for a freshly generated artifact.
func TempStorageKey(requestID, imageID string) string {
	return fmt.Sprintf("temp/%s/%s.png", requestID, imageID)
}

// SavedStorageKey returns the permanent location for a kept artifact.
func SavedStorageKey(userID, requestID, imageID string) string {
	return fmt.Sprintf("saved/%s/%s/%s.png", userID, requestID, imageID)
}
