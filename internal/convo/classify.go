package convo

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ReplyKind distinguishes a document edit from plain conversation.
type ReplyKind string

const (
	// ReplyEdit means the model is replacing the working document.
	ReplyEdit ReplyKind = "edit"
	// ReplyChat means the model answered conversationally.
	ReplyChat ReplyKind = "chat"
)

// EditPayload is the structured shape the model emits when it rewrites
// the working document.
type EditPayload struct {
	Explanation string `json:"explanation"`
	NewContent  string `json:"newContent"`
}

// Reply is the classifier's output: exactly one variant per model turn.
// For an Edit, Content is empty; for a Chat, Edit is the zero value.
type Reply struct {
	Kind    ReplyKind
	Edit    EditPayload
	Content string
}

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// Classify inspects raw model text and decides whether it encodes a
// structured edit or is conversational. It returns the reply and the exact
// string to append to history as the assistant turn: the explanation for
// an edit (the full document is returned to the caller but kept out of
// history), the verbatim raw text otherwise. Classification never fails;
// malformed edits degrade to chat.
func Classify(raw string) (Reply, string) {
	if payload, ok := ParseEdit(raw); ok {
		return Reply{Kind: ReplyEdit, Edit: payload}, payload.Explanation
	}
	return Reply{Kind: ReplyChat, Content: raw}, raw
}

// ParseEdit attempts to extract an edit payload from raw model text.
// The model inconsistently wraps structured replies in markdown fences,
// emits them bare, or ignores the structured format entirely, so two
// strategies are tried in order:
//
//  1. the interior of a ```json fenced block;
//  2. the substring between the first '{' and last '}' of the trimmed text.
//
// A parse only counts when the object carries non-empty explanation and
// newContent strings; ordinary prose that happens to contain braces
// parses to the wrong shape and falls through.
func ParseEdit(raw string) (EditPayload, bool) {
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		if payload, ok := decodeEdit(m[1]); ok {
			return payload, true
		}
	}

	trimmed := strings.TrimSpace(raw)
	open := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if open >= 0 && end > open {
		if payload, ok := decodeEdit(trimmed[open : end+1]); ok {
			return payload, true
		}
	}

	return EditPayload{}, false
}

func decodeEdit(candidate string) (EditPayload, bool) {
	var payload EditPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return EditPayload{}, false
	}
	if payload.Explanation == "" || payload.NewContent == "" {
		return EditPayload{}, false
	}
	return payload, true
}
