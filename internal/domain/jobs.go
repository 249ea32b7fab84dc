package domain

import (
	"fmt"
	"strings"
)

// ActionType enumerates follow-up curation actions carried by an ActionJob.
type ActionType string

const (
	ActionKeep          ActionType = "keep"
	ActionDiscard       ActionType = "discard"
	ActionKeepAll       ActionType = "keep_all"
	ActionDiscardAll    ActionType = "discard_all"
	ActionRegenerateAll ActionType = "regenerate_all"
)

// GenerationJob is the transport payload for the generation queue. It carries
// everything the worker needs so it never has to reach back into the gateway.
type GenerationJob struct {
	RequestID      string `json:"request_id"`
	UserID         string `json:"user_id"`
	ChannelID      string `json:"channel_id"`
	Prompt         string `json:"prompt"`
	CallbackTarget string `json:"callback_target"`
}

// Validate reports whether the payload is complete enough to process.
// A malformed job is a permanent failure, not a retryable one.
func (j GenerationJob) Validate() error {
	if strings.TrimSpace(j.RequestID) == "" {
		return fmt.Errorf("generation job: %w: request_id missing", ErrMalformedJob)
	}
	if strings.TrimSpace(j.Prompt) == "" {
		return fmt.Errorf("generation job: %w: prompt missing", ErrMalformedJob)
	}
	if strings.TrimSpace(j.ChannelID) == "" {
		return fmt.Errorf("generation job: %w: channel_id missing", ErrMalformedJob)
	}
	return nil
}

// ActionJob is the transport payload for the action queue. TriggerID is the
// platform's unique id for the originating interaction event; regeneration
// derives the sibling request id from it so a redelivered job recreates the
// same request instead of a second one.
type ActionJob struct {
	Action         ActionType `json:"action"`
	ImageID        string     `json:"image_id,omitempty"`
	RequestID      string     `json:"request_id"`
	UserID         string     `json:"user_id"`
	ChannelID      string     `json:"channel_id"`
	CallbackTarget string     `json:"callback_target"`
	OriginalPrompt string     `json:"original_prompt,omitempty"`
	TriggerID      string     `json:"trigger_id,omitempty"`
}

// Validate checks the payload against the per-action requirements.
func (j ActionJob) Validate() error {
	if strings.TrimSpace(j.RequestID) == "" {
		return fmt.Errorf("action job: %w: request_id missing", ErrMalformedJob)
	}
	switch j.Action {
	case ActionKeep, ActionDiscard:
		if strings.TrimSpace(j.ImageID) == "" {
			return fmt.Errorf("action job: %w: image_id required for %s", ErrMalformedJob, j.Action)
		}
	case ActionKeepAll, ActionDiscardAll:
	case ActionRegenerateAll:
		if strings.TrimSpace(j.OriginalPrompt) == "" {
			return fmt.Errorf("action job: %w: original_prompt required for regenerate", ErrMalformedJob)
		}
	default:
		return fmt.Errorf("action job: %w: unknown action %q", ErrMalformedJob, j.Action)
	}
	return nil
}

// IdeationJob is the transport payload for the ideation queue. Ideation has no
// persisted state; the answer goes straight back to the callback target.
type IdeationJob struct {
	Question       string `json:"question"`
	UserID         string `json:"user_id"`
	ChannelID      string `json:"channel_id"`
	CallbackTarget string `json:"callback_target"`
}

// Validate reports whether the payload can be processed.
func (j IdeationJob) Validate() error {
	if strings.TrimSpace(j.Question) == "" {
		return fmt.Errorf("ideation job: %w: question missing", ErrMalformedJob)
	}
	return nil
}
