package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"imagebot/internal/chat"
	"imagebot/internal/domain"
	"imagebot/internal/infra"
	"imagebot/internal/providers/ideation"
)

// Ideation consumes the ideation queue: one reasoning call per job, answer
// posted straight back to the callback target, nothing persisted.
type Ideation struct {
	responder ideation.Responder
	poster    chat.Poster
	log       infra.Logger
}

// NewIdeation wires the ideation worker.
func NewIdeation(responder ideation.Responder, poster chat.Poster, log infra.Logger) *Ideation {
	return &Ideation{responder: responder, poster: poster, log: log}
}

// Handle is the queue entry point.
func (w *Ideation) Handle(ctx context.Context, body []byte) error {
	var job domain.IdeationJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("ideation job: %w: %v", domain.ErrMalformedJob, err)
	}
	if err := job.Validate(); err != nil {
		return err
	}

	var answer *ideation.Answer
	err := retryTransient(ctx, func() error {
		var callErr error
		answer, callErr = w.responder.Respond(ctx, job.Question)
		return callErr
	})
	if err != nil {
		notice := chat.FailureMessage("the ideation service is unavailable")
		if postErr := w.poster.Respond(ctx, job.CallbackTarget, notice); postErr != nil {
			w.log.Error().Err(postErr).Msg("ideation failure notice post failed")
		}
		return fmt.Errorf("ideation: %w", err)
	}

	msg := chat.Message{Text: answer.Text}
	if err := w.poster.Respond(ctx, job.CallbackTarget, msg); err != nil {
		return fmt.Errorf("ideation: post answer: %w", err)
	}
	w.log.Info().Str("model", answer.Model).Msg("ideation answered")
	return nil
}
