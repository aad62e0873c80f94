// Package humanize rewrites generated text through an external humanizer
// API. The service is a thin authenticated pass-through: mode validation
// happens here, everything else is the upstream's business.
package humanize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mithoo/internal/logger"
)

// Mode controls how aggressively the upstream rewrites the text.
type Mode string

const (
	ModeSubtle   Mode = "subtle"
	ModeBalanced Mode = "balanced"
	ModeStrong   Mode = "strong"
	ModeStealth  Mode = "stealth"
)

// DefaultMode is used when the caller omits or blanks the mode.
const DefaultMode = ModeBalanced

// ErrEmptyText is returned when there is nothing to humanize.
var ErrEmptyText = errors.New("text to humanize is empty")

// ErrInvalidMode is returned for a mode outside the supported set.
var ErrInvalidMode = errors.New("invalid humanizer mode")

// UpstreamError carries a non-success status from the humanizer API so
// handlers can propagate it.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("humanizer API returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the external humanizer API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a humanizer client for the given endpoint.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// ParseMode validates a raw mode string, defaulting blanks to balanced.
func ParseMode(raw string) (Mode, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultMode, nil
	}
	switch Mode(strings.ToLower(raw)) {
	case ModeSubtle, ModeBalanced, ModeStrong, ModeStealth:
		return Mode(strings.ToLower(raw)), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
}

type upstreamRequest struct {
	Text string `json:"text"`
	Mode string `json:"mode"`
}

type upstreamResponse struct {
	HumanizedText string `json:"humanizedText"`
}

// Humanize sends the text upstream and returns the rewritten version.
func (c *Client) Humanize(ctx context.Context, text string, mode Mode) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	payload, err := json.Marshal(upstreamRequest{Text: text, Mode: string(mode)})
	if err != nil {
		return "", fmt.Errorf("failed to encode humanizer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/humanize", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build humanizer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("humanizer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read humanizer response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Warn("Humanizer API returned non-success status",
			"status", resp.StatusCode, "mode", mode)
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded upstreamResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode humanizer response: %w", err)
	}
	return decoded.HumanizedText, nil
}
