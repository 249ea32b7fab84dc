package gateway

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"imagebot/internal/chat"
	"imagebot/internal/domain"
)

// requestTTL is the auto-cleanup horizon for request records.
const requestTTL = 30 * 24 * time.Hour

// Command handles the inbound slash-command webhook. Everything up to the
// acknowledgment happens synchronously; no provider is touched on this path.
func (a *App) Command(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := a.Verifier.VerifyRequest(r, body); err != nil {
		a.Log.Warn().Err(err).Msg("command signature rejected")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	userID := form.Get("user_id")
	channelID := form.Get("channel_id")
	command := form.Get("command")
	text := strings.TrimSpace(form.Get("text"))
	callbackTarget := form.Get("response_url")

	if channelID != a.AllowedChannelID {
		a.userError(w, msgWrongChannel)
		return
	}
	if text == "" {
		a.userError(w, msgEmptyPrompt)
		return
	}

	switch command {
	case "/ideate":
		a.enqueueIdeation(w, r, userID, channelID, text, callbackTarget)
	default:
		a.enqueueGeneration(w, r, userID, channelID, text, callbackTarget)
	}
}

func (a *App) enqueueGeneration(w http.ResponseWriter, r *http.Request, userID, channelID, prompt, callbackTarget string) {
	requestID := uuid.NewString()
	expiresAt := time.Now().Add(requestTTL)

	req := &domain.GenerationRequest{
		ID:             requestID,
		UserID:         userID,
		ChannelID:      channelID,
		Prompt:         prompt,
		Status:         domain.RequestStatusPending,
		CallbackTarget: callbackTarget,
		ExpiresAt:      &expiresAt,
	}
	if err := a.Requests.Create(r.Context(), req); err != nil {
		a.Log.Error().Err(err).Str("request_id", requestID).Msg("request create failed")
		a.userError(w, msgTryAgain)
		return
	}

	job := domain.GenerationJob{
		RequestID:      requestID,
		UserID:         userID,
		ChannelID:      channelID,
		Prompt:         prompt,
		CallbackTarget: callbackTarget,
	}
	if err := a.GenQueue.Publish(r.Context(), job); err != nil {
		a.Log.Error().Err(err).Str("request_id", requestID).Msg("generation enqueue failed")
		a.userError(w, msgTryAgain)
		return
	}

	a.Log.Info().Str("request_id", requestID).Str("user_id", userID).Msg("generation request accepted")
	a.json(w, http.StatusOK, chat.AckMessage(prompt))
}

func (a *App) enqueueIdeation(w http.ResponseWriter, r *http.Request, userID, channelID, question, callbackTarget string) {
	job := domain.IdeationJob{
		Question:       question,
		UserID:         userID,
		ChannelID:      channelID,
		CallbackTarget: callbackTarget,
	}
	if err := a.IdeaQueue.Publish(r.Context(), job); err != nil {
		a.Log.Error().Err(err).Msg("ideation enqueue failed")
		a.userError(w, msgTryAgain)
		return
	}
	a.json(w, http.StatusOK, chat.Message{Text: ":bulb: Thinking it over, answer coming up."})
}
