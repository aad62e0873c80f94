// Package llm wraps the Gemini generative-language API behind the narrow
// surface the Mithoo pipeline needs: one request/response call per turn,
// buffered or incrementally flushed, with optional search grounding.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"google.golang.org/genai"

	"mithoo/internal/core"
)

const (
	// DefaultModel is the Gemini model used when none is configured.
	DefaultModel = "gemini-2.0-flash"

	// DefaultChatMaxTokens bounds conversational replies.
	DefaultChatMaxTokens = int32(2048)
	// DefaultLongFormMaxTokens bounds research and article generation.
	DefaultLongFormMaxTokens = int32(4096)

	generationFailedText = "I apologize, but I encountered an error generating a response."
)

// Request describes one call to the generative service.
type Request struct {
	Turns           []core.Turn // Normalized turn sequence, oldest first
	SystemPrompt    string      // Persona plus optional context, may be empty
	EnableResearch  bool        // Attach the search grounding tool
	MaxOutputTokens int32       // 0 means DefaultChatMaxTokens
}

// Result is the outcome of a successful call. Degraded is set when the
// service returned no candidates and Text holds a synthesized apology
// instead of model output.
type Result struct {
	Text     string
	Sources  []core.Citation
	Degraded bool
}

// Generator is the model collaborator as seen by the pipeline. Both
// delivery modes return the complete final text; GenerateStream
// additionally flushes chunks through the sink as they arrive.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
	GenerateStream(ctx context.Context, req Request, onChunk func(chunk string)) (Result, error)
}

// Factory builds a Generator for a resolved API key. The pipeline calls
// it once per invocation so per-user custom keys never leak into shared
// state.
type Factory func(ctx context.Context, apiKey string) (Generator, error)

// ResolveAPIKey picks the key for one invocation: the user's custom key
// when present, the service default otherwise.
func ResolveAPIKey(customKey, defaultKey string) string {
	if strings.TrimSpace(customKey) != "" {
		return customKey
	}
	return defaultKey
}

// DefaultAPIKey reads the service-wide key from the environment, falling
// back to the gemini.api_key config entry.
func DefaultAPIKey() string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		return key
	}
	return viper.GetString("ai.gemini.api_key")
}

// Client is a Gemini-backed Generator.
type Client struct {
	modelName string
	gClient   *genai.Client
}

// NewClient creates a Gemini client for the given key and model. An empty
// model name falls back to the gemini.model config entry, then to
// DefaultModel.
func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY or ai.gemini.api_key in the config file")
	}
	if modelName == "" {
		modelName = viper.GetString("ai.gemini.model")
		if modelName == "" {
			modelName = DefaultModel
		}
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{modelName: modelName, gClient: gClient}, nil
}

// NewFactory returns a Factory producing Gemini clients for the given
// model name.
func NewFactory(modelName string) Factory {
	return func(ctx context.Context, apiKey string) (Generator, error) {
		return NewClient(ctx, apiKey, modelName)
	}
}

// GetModelName returns the model name used by this client.
func (c *Client) GetModelName() string {
	return c.modelName
}

// Generate performs one buffered generateContent call.
func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, toContents(req.Turns), c.buildConfig(req))
	if err != nil {
		return Result{}, &UpstreamError{Message: err.Error()}
	}

	if len(resp.Candidates) == 0 {
		// The service answered but produced nothing; degrade to an apology
		// naming the block reason so the user always gets a reply.
		return Result{Text: blockedApology(resp), Degraded: true}, nil
	}

	text := resp.Text()
	if text == "" {
		text = generationFailedText
	}
	return Result{Text: text, Sources: extractSources(resp)}, nil
}

// GenerateStream performs one streaming generateContent call, flushing
// each text chunk through onChunk and returning the accumulated text.
func (c *Client) GenerateStream(ctx context.Context, req Request, onChunk func(chunk string)) (Result, error) {
	var full strings.Builder
	var last *genai.GenerateContentResponse

	for chunk, err := range c.gClient.Models.GenerateContentStream(ctx, c.modelName, toContents(req.Turns), c.buildConfig(req)) {
		if err != nil {
			return Result{}, &UpstreamError{Message: err.Error()}
		}
		last = chunk
		if text := chunk.Text(); text != "" {
			full.WriteString(text)
			onChunk(text)
		}
	}

	if full.Len() == 0 {
		apology := blockedApology(last)
		onChunk(apology)
		return Result{Text: apology, Degraded: true}, nil
	}
	return Result{Text: full.String(), Sources: extractSources(last)}, nil
}

// buildConfig translates a Request into the wire generation config. The
// sampling parameters match what the product has always sent.
func (c *Client) buildConfig(req Request) *genai.GenerateContentConfig {
	maxTokens := req.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = DefaultChatMaxTokens
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(0.7)),
		TopK:            genai.Ptr(float32(40)),
		TopP:            genai.Ptr(float32(0.95)),
		MaxOutputTokens: maxTokens,
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if req.EnableResearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return config
}

// toContents maps turns onto the wire roles: assistant turns become
// "model", everything else "user".
func toContents(turns []core.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.RoleUser
		if t.Role == core.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: t.Content}},
		})
	}
	return contents
}

// blockedApology synthesizes the reply used when the service returns zero
// candidates, naming the reported block reason.
func blockedApology(resp *genai.GenerateContentResponse) string {
	reason := "Content policy"
	if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		reason = string(resp.PromptFeedback.BlockReason)
	}
	return fmt.Sprintf("I am unable to provide a response. Reason: %s. Please try rephrasing your request.", reason)
}

// extractSources pulls grounding sources off the first candidate, when
// the model grounded its answer in search results.
func extractSources(resp *genai.GenerateContentResponse) []core.Citation {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	md := resp.Candidates[0].GroundingMetadata
	if md == nil {
		return nil
	}
	var sources []core.Citation
	for _, chunk := range md.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		sources = append(sources, core.Citation{URL: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return sources
}
