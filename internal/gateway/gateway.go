// Package gateway terminates the chat platform's webhooks. Both endpoints do
// the same dance: verify the signature, check the origin channel, translate
// the payload into a job, and acknowledge inside the platform's synchronous
// response budget. All real work is deferred to the queue consumers.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"imagebot/internal/chat"
	"imagebot/internal/domain"
	"imagebot/internal/infra"
	"imagebot/internal/storage"
)

// Enqueuer publishes a payload onto a queue. Satisfied by rabbitmq.Publisher.
type Enqueuer interface {
	Publish(ctx context.Context, payload any) error
}

// App carries the gateway's dependencies.
type App struct {
	Verifier *chat.Verifier
	Requests domain.RequestRepository
	Images   domain.ImageRepository
	Store    *storage.FileStore
	Signer   *storage.URLSigner

	GenQueue    Enqueuer
	ActionQueue Enqueuer
	IdeaQueue   Enqueuer

	AllowedChannelID string
	Log              infra.Logger
}

// json writes a JSON response. The chat platform treats any non-2xx as a
// delivery failure and retries the webhook, so user-visible errors ride on a
// 200 with a message payload instead.
func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// userError acknowledges the webhook with an ephemeral, user-visible message.
func (a *App) userError(w http.ResponseWriter, text string) {
	a.json(w, http.StatusOK, chat.EphemeralError(text))
}

const (
	msgWrongChannel = "This command only works in the designated image channel."
	msgEmptyPrompt  = "Please provide a prompt, e.g. `/imagine a retro sunset with palm trees`."
	msgTryAgain     = "Something went wrong on our side. Please try again."
)
