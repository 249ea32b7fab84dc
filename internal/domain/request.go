package domain

import "time"

// RequestStatus enumerates generation request lifecycle states.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusGenerating RequestStatus = "generating"
	RequestStatusCompleted  RequestStatus = "completed"
	RequestStatusFailed     RequestStatus = "failed"
)

// Terminal reports whether no further transition is permitted from s.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusFailed
}

// requestStatusRank orders statuses along the only legal path:
// pending -> generating -> completed|failed.
var requestStatusRank = map[RequestStatus]int{
	RequestStatusPending:    0,
	RequestStatusGenerating: 1,
	RequestStatusCompleted:  2,
	RequestStatusFailed:     2,
}

// CanTransition reports whether moving from s to next is a forward step.
// Equal-rank moves are rejected so completed never flips to failed.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	from, ok := requestStatusRank[s]
	if !ok {
		return false
	}
	to, ok := requestStatusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// GenerationRequest represents one user-submitted prompt-to-images job.
type GenerationRequest struct {
	ID             string
	UserID         string
	ChannelID      string
	Prompt         string
	EnhancedPrompt string
	Status         RequestStatus
	Model          string
	CallbackTarget string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      *time.Time
}
