package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"imagebot/internal/chat"
	"imagebot/internal/domain"
)

// interactionPayload is the structured body of a button click, delivered as a
// form field named "payload".
type interactionPayload struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Actions []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
	TriggerID   string `json:"trigger_id"`
	ResponseURL string `json:"response_url"`
}

// Interact handles button clicks on the results view. Duplicate clicks are
// not deduplicated here; they become duplicate action jobs the worker absorbs.
// The acknowledgment is an empty 200 so the platform leaves the message alone
// until the worker rewrites it.
func (a *App) Interact(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := a.Verifier.VerifyRequest(r, body); err != nil {
		a.Log.Warn().Err(err).Msg("interaction signature rejected")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var payload interactionPayload
	if err := json.Unmarshal([]byte(form.Get("payload")), &payload); err != nil {
		a.userError(w, "That action could not be read. Please try again.")
		return
	}
	if payload.Channel.ID != a.AllowedChannelID {
		a.userError(w, msgWrongChannel)
		return
	}
	if len(payload.Actions) == 0 {
		a.userError(w, "That action could not be read. Please try again.")
		return
	}

	act := payload.Actions[0]
	job, err := a.buildActionJob(r, payload, act.ActionID, act.Value)
	if err != nil {
		a.Log.Warn().Err(err).Str("action_id", act.ActionID).Msg("action rejected")
		a.userError(w, "That action is no longer available.")
		return
	}

	if err := a.ActionQueue.Publish(r.Context(), job); err != nil {
		a.Log.Error().Err(err).Str("action_id", act.ActionID).Msg("action enqueue failed")
		a.userError(w, msgTryAgain)
		return
	}

	// Empty ack: no body means no "updating" placeholder in the client.
	w.WriteHeader(http.StatusOK)
}

func (a *App) buildActionJob(r *http.Request, payload interactionPayload, actionID, value string) (domain.ActionJob, error) {
	imageID, requestID, err := chat.DecodeActionValue(value)
	if err != nil {
		return domain.ActionJob{}, err
	}

	job := domain.ActionJob{
		ImageID:        imageID,
		RequestID:      requestID,
		UserID:         payload.User.ID,
		ChannelID:      payload.Channel.ID,
		CallbackTarget: payload.ResponseURL,
		TriggerID:      payload.TriggerID,
	}

	switch actionID {
	case chat.ActionIDKeep:
		job.Action = domain.ActionKeep
	case chat.ActionIDDiscard:
		job.Action = domain.ActionDiscard
	case chat.ActionIDKeepAll:
		job.Action = domain.ActionKeepAll
	case chat.ActionIDDiscardAll:
		job.Action = domain.ActionDiscardAll
	case chat.ActionIDRegenerateAll:
		job.Action = domain.ActionRegenerateAll
		// The worker has no synchronous path back to the original request by
		// the time it dequeues, so the prompt rides along in the job.
		req, err := a.Requests.GetByID(r.Context(), requestID)
		if err != nil {
			return domain.ActionJob{}, err
		}
		job.OriginalPrompt = req.Prompt
	default:
		return domain.ActionJob{}, domain.ErrMalformedJob
	}

	return job, job.Validate()
}
