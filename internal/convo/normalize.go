// Package convo reconciles conversation histories for the generative model
// and classifies the model's replies. The upstream model rejects histories
// with consecutive same-role turns or histories that do not start with a
// user turn, so every request goes through Normalize first.
package convo

import (
	"errors"
	"strings"

	"mithoo/internal/core"
)

// ErrNoUserTurn is returned when a history contains no user turn at all.
// The pipeline cannot construct a valid model request without one.
var ErrNoUserTurn = errors.New("conversation contains no user turn")

// Normalize rewrites a turn sequence so that it satisfies the model's
// contract: no two adjacent turns share a role, and the sequence begins
// with a user turn. Relative order of surviving turns is preserved, and
// applying Normalize to an already-normalized sequence returns it
// unchanged.
func Normalize(turns []core.Turn) ([]core.Turn, error) {
	merged := consolidate(turns)

	// Drop everything before the first user turn.
	start := -1
	for i, t := range merged {
		if t.Role == core.RoleUser {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrNoUserTurn
	}
	merged = merged[start:]

	// Trimming can reintroduce adjacency, so walk once more keeping the
	// first element and dropping any turn that repeats the previous kept
	// turn's role.
	out := make([]core.Turn, 0, len(merged))
	for _, t := range merged {
		if len(out) > 0 && out[len(out)-1].Role == t.Role {
			continue
		}
		out = append(out, t)
	}

	return out, nil
}

// consolidate merges consecutive same-role turns into one turn whose
// content is both contents joined by a blank line. Empty and
// whitespace-only turns are dropped.
func consolidate(turns []core.Turn) []core.Turn {
	var out []core.Turn
	for _, t := range turns {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		if len(out) > 0 && out[len(out)-1].Role == t.Role {
			out[len(out)-1].Content = out[len(out)-1].Content + "\n\n" + t.Content
			continue
		}
		out = append(out, core.Turn{Role: t.Role, Content: t.Content})
	}
	return out
}
