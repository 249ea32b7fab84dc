package chat

import (
	"fmt"
	"strings"
)

// Message is the outbound payload posted to a channel or callback target.
// ReplaceOriginal drives the in-place rewrite of the results view: every
// curation action re-renders the whole message instead of appending new ones.
type Message struct {
	Text            string  `json:"text"`
	Blocks          []Block `json:"blocks,omitempty"`
	ReplaceOriginal bool    `json:"replace_original,omitempty"`
	Ephemeral       bool    `json:"ephemeral,omitempty"`
}

// Block is one section of a structured message.
type Block struct {
	Type     string   `json:"type"`
	Text     string   `json:"text,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	AltText  string   `json:"alt_text,omitempty"`
	Elements []Button `json:"elements,omitempty"`
}

// Button is one interactive element inside an actions block.
type Button struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ActionID string `json:"action_id"`
	Value    string `json:"value"`
	Style    string `json:"style,omitempty"`
}

// Action identifiers carried in button payloads.
const (
	ActionIDKeep          = "keep"
	ActionIDDiscard       = "discard"
	ActionIDKeepAll       = "keep_all"
	ActionIDDiscardAll    = "discard_all"
	ActionIDRegenerateAll = "regenerate_all"
)

// EncodeActionValue packs an image/request pair into a button value.
func EncodeActionValue(imageID, requestID string) string {
	return imageID + ":" + requestID
}

// DecodeActionValue unpacks a button value. Batch actions carry only the
// request id, so imageID may be empty.
func DecodeActionValue(value string) (imageID, requestID string, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", fmt.Errorf("chat: empty action value")
	}
	parts := strings.SplitN(value, ":", 2)
	if len(parts) == 1 {
		return "", parts[0], nil
	}
	return parts[0], parts[1], nil
}

// ImageView is one artifact as it appears in the results message.
type ImageView struct {
	ID        string
	RequestID string
	URL       string
	Kept      bool
	Discarded bool
}

// ResultsMessage renders the curation view for a request: one image block per
// visible artifact with keep/discard buttons, plus a batch action row.
// Discarded artifacts are hidden; kept ones lose their buttons and gain a
// marker.
func ResultsMessage(prompt string, images []ImageView) Message {
	msg := Message{
		Text:            fmt.Sprintf("Results for: %s", prompt),
		ReplaceOriginal: true,
	}
	msg.Blocks = append(msg.Blocks, Block{Type: "section", Text: fmt.Sprintf("*%s*", prompt)})

	visible := 0
	anyActive := false
	var requestID string
	for _, img := range images {
		if img.Discarded {
			continue
		}
		visible++
		requestID = img.RequestID
		msg.Blocks = append(msg.Blocks, Block{
			Type:     "image",
			ImageURL: img.URL,
			AltText:  prompt,
		})
		if img.Kept {
			msg.Blocks = append(msg.Blocks, Block{Type: "context", Text: ":white_check_mark: kept"})
			continue
		}
		anyActive = true
		msg.Blocks = append(msg.Blocks, Block{
			Type: "actions",
			Elements: []Button{
				{Type: "button", Text: "Keep", ActionID: ActionIDKeep, Value: EncodeActionValue(img.ID, img.RequestID), Style: "primary"},
				{Type: "button", Text: "Discard", ActionID: ActionIDDiscard, Value: EncodeActionValue(img.ID, img.RequestID), Style: "danger"},
			},
		})
	}

	if visible == 0 {
		msg.Blocks = append(msg.Blocks, Block{Type: "context", Text: "All images discarded."})
	}
	if requestID != "" {
		row := Block{Type: "actions"}
		if anyActive {
			row.Elements = append(row.Elements,
				Button{Type: "button", Text: "Keep all", ActionID: ActionIDKeepAll, Value: requestID},
				Button{Type: "button", Text: "Discard all", ActionID: ActionIDDiscardAll, Value: requestID},
			)
		}
		row.Elements = append(row.Elements,
			Button{Type: "button", Text: "Regenerate", ActionID: ActionIDRegenerateAll, Value: requestID},
		)
		msg.Blocks = append(msg.Blocks, row)
	}
	return msg
}

// FailureMessage renders a plain failure notice with a short reason. Raw
// internal errors never reach the chat surface; callers pass a summary.
func FailureMessage(reason string) Message {
	return Message{
		Text:            fmt.Sprintf(":warning: Image generation failed: %s. Please try again.", reason),
		ReplaceOriginal: true,
	}
}

// RegeneratingMessage renders the interim view shown while a regenerated
// sibling request is in flight.
func RegeneratingMessage(prompt string) Message {
	return Message{
		Text:            fmt.Sprintf(":hourglass: Regenerating images for: %s", prompt),
		ReplaceOriginal: true,
	}
}

// AckMessage is the immediate acknowledgment returned inside the synchronous
// response budget, before any provider work starts.
func AckMessage(prompt string) Message {
	return Message{Text: fmt.Sprintf(":art: Generating images for: %s. Hang tight.", prompt)}
}

// EphemeralError renders a user-visible validation failure.
func EphemeralError(text string) Message {
	return Message{Text: text, Ephemeral: true}
}
