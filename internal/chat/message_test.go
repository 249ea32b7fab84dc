package chat

import "testing"

func TestDecodeActionValue(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		imageID   string
		requestID string
		wantErr   bool
	}{
		{name: "pair", value: "img-1:req-1", imageID: "img-1", requestID: "req-1"},
		{name: "request only", value: "req-1", imageID: "", requestID: "req-1"},
		{name: "empty", value: "", wantErr: true},
		{name: "whitespace", value: "   ", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			imageID, requestID, err := DecodeActionValue(tc.value)
			if tc.wantErr {
				if err == nil {
					t.Fatal("DecodeActionValue accepted invalid value")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeActionValue returned error: %v", err)
			}
			if imageID != tc.imageID || requestID != tc.requestID {
				t.Fatalf("DecodeActionValue = (%q, %q), want (%q, %q)", imageID, requestID, tc.imageID, tc.requestID)
			}
		})
	}
}

func TestResultsMessageHidesDiscarded(t *testing.T) {
	msg := ResultsMessage("a red fox", []ImageView{
		{ID: "a", RequestID: "req-1", URL: "http://x/a"},
		{ID: "b", RequestID: "req-1", URL: "http://x/b", Discarded: true},
		{ID: "c", RequestID: "req-1", URL: "http://x/c"},
	})

	imageBlocks := 0
	for _, b := range msg.Blocks {
		if b.Type == "image" {
			imageBlocks++
			if b.ImageURL == "http://x/b" {
				t.Fatal("discarded artifact rendered")
			}
		}
	}
	if imageBlocks != 2 {
		t.Fatalf("image blocks = %d, want 2", imageBlocks)
	}
	if !msg.ReplaceOriginal {
		t.Fatal("results message must replace the original")
	}
}

func TestResultsMessageKeptLosesButtons(t *testing.T) {
	msg := ResultsMessage("a red fox", []ImageView{
		{ID: "a", RequestID: "req-1", URL: "http://x/a", Kept: true},
	})

	for _, b := range msg.Blocks {
		for _, e := range b.Elements {
			if e.ActionID == ActionIDKeep || e.ActionID == ActionIDDiscard {
				t.Fatalf("kept artifact still has %s button", e.ActionID)
			}
		}
	}
}

func TestResultsMessageBatchRow(t *testing.T) {
	// All artifacts settled: no keep-all/discard-all, but regenerate stays.
	msg := ResultsMessage("fox", []ImageView{
		{ID: "a", RequestID: "req-1", URL: "http://x/a", Kept: true},
	})
	var actionIDs []string
	for _, b := range msg.Blocks {
		for _, e := range b.Elements {
			actionIDs = append(actionIDs, e.ActionID)
		}
	}
	if len(actionIDs) != 1 || actionIDs[0] != ActionIDRegenerateAll {
		t.Fatalf("batch actions = %v, want only regenerate", actionIDs)
	}

	// With an active artifact all three batch buttons appear.
	msg = ResultsMessage("fox", []ImageView{
		{ID: "a", RequestID: "req-1", URL: "http://x/a"},
	})
	found := map[string]bool{}
	for _, b := range msg.Blocks {
		for _, e := range b.Elements {
			found[e.ActionID] = true
		}
	}
	for _, id := range []string{ActionIDKeepAll, ActionIDDiscardAll, ActionIDRegenerateAll} {
		if !found[id] {
			t.Fatalf("missing batch action %s", id)
		}
	}
}

func TestResultsMessageAllDiscarded(t *testing.T) {
	msg := ResultsMessage("fox", []ImageView{
		{ID: "a", RequestID: "req-1", URL: "http://x/a", Discarded: true},
	})
	for _, b := range msg.Blocks {
		if b.Type == "image" {
			t.Fatal("discarded artifact rendered")
		}
	}
}
