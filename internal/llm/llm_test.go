package llm

import (
	"context"
	"strings"
	"testing"

	"google.golang.org/genai"

	"mithoo/internal/core"
)

func TestResolveAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		customKey  string
		defaultKey string
		want       string
	}{
		{"custom key wins", "user-key", "service-key", "user-key"},
		{"empty custom falls back", "", "service-key", "service-key"},
		{"whitespace custom falls back", "   ", "service-key", "service-key"},
		{"both empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveAPIKey(tt.customKey, tt.defaultKey); got != tt.want {
				t.Errorf("ResolveAPIKey(%q, %q) = %q, want %q", tt.customKey, tt.defaultKey, got, tt.want)
			}
		})
	}
}

func TestNewClient_NoAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", "")
	if err == nil {
		t.Fatal("expected error when no API key is available")
	}
	if !strings.Contains(err.Error(), "gemini API key is required") {
		t.Errorf("expected API key error, got: %v", err)
	}
}

func TestToContents_RoleMapping(t *testing.T) {
	turns := []core.Turn{
		{Role: core.RoleUser, Content: "hi"},
		{Role: core.RoleAssistant, Content: "hello"},
		{Role: core.RoleUser, Content: "write something"},
	}

	contents := toContents(turns)
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	wantRoles := []string{genai.RoleUser, genai.RoleModel, genai.RoleUser}
	for i, c := range contents {
		if c.Role != wantRoles[i] {
			t.Errorf("content %d role = %q, want %q", i, c.Role, wantRoles[i])
		}
		if len(c.Parts) != 1 || c.Parts[0].Text != turns[i].Content {
			t.Errorf("content %d parts = %+v, want single text part %q", i, c.Parts, turns[i].Content)
		}
	}
}

func TestBuildConfig_Defaults(t *testing.T) {
	c := &Client{modelName: DefaultModel}

	config := c.buildConfig(Request{Turns: nil, SystemPrompt: "persona"})
	if config.MaxOutputTokens != DefaultChatMaxTokens {
		t.Errorf("max tokens = %d, want %d", config.MaxOutputTokens, DefaultChatMaxTokens)
	}
	if config.Temperature == nil || *config.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", config.Temperature)
	}
	if config.SystemInstruction == nil || config.SystemInstruction.Parts[0].Text != "persona" {
		t.Error("system instruction not carried into config")
	}
	if config.Tools != nil {
		t.Error("no tools expected when research is disabled")
	}
}

func TestBuildConfig_ResearchAttachesSearchTool(t *testing.T) {
	c := &Client{modelName: DefaultModel}

	config := c.buildConfig(Request{EnableResearch: true, MaxOutputTokens: DefaultLongFormMaxTokens})
	if config.MaxOutputTokens != DefaultLongFormMaxTokens {
		t.Errorf("max tokens = %d, want %d", config.MaxOutputTokens, DefaultLongFormMaxTokens)
	}
	if len(config.Tools) != 1 || config.Tools[0].GoogleSearch == nil {
		t.Errorf("expected a single GoogleSearch tool, got %+v", config.Tools)
	}
}

func TestBlockedApology(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
			BlockReason: genai.BlockedReasonSafety,
		},
	}

	apology := blockedApology(resp)
	if !strings.Contains(apology, "SAFETY") {
		t.Errorf("apology %q does not name the block reason", apology)
	}
}

func TestBlockedApology_NoFeedback(t *testing.T) {
	apology := blockedApology(&genai.GenerateContentResponse{})
	if !strings.Contains(apology, "Content policy") {
		t.Errorf("apology %q should fall back to a generic reason", apology)
	}

	apology = blockedApology(nil)
	if !strings.Contains(apology, "Content policy") {
		t.Errorf("nil response apology %q should fall back to a generic reason", apology)
	}
}

func TestExtractSources(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			GroundingMetadata: &genai.GroundingMetadata{
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{URI: "https://example.com/a", Title: "A"}},
					{Web: &genai.GroundingChunkWeb{URI: "", Title: "dropped"}},
					{Web: nil},
					{Web: &genai.GroundingChunkWeb{URI: "https://example.com/b", Title: "B"}},
				},
			},
		}},
	}

	sources := extractSources(resp)
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d: %+v", len(sources), sources)
	}
	if sources[0].URL != "https://example.com/a" || sources[1].Title != "B" {
		t.Errorf("unexpected sources: %+v", sources)
	}
}

func TestSystemPrompt_Assembly(t *testing.T) {
	doc := &core.DocumentContext{Title: "Bees", Markdown: "# Bees\n\nBees are great."}

	prompt := SystemPrompt(doc, "sample style text")
	if !strings.HasPrefix(prompt, "You are Mithoo") {
		t.Error("prompt should start with the persona")
	}
	if !strings.Contains(prompt, `article titled "Bees"`) {
		t.Error("prompt should name the article title")
	}
	if !strings.Contains(prompt, "sample style text") {
		t.Error("prompt should carry the training data")
	}
	if strings.Index(prompt, "Bees are great.") > strings.Index(prompt, "sample style text") {
		t.Error("document context should precede training data")
	}
}

func TestSystemPrompt_UntitledFallback(t *testing.T) {
	doc := &core.DocumentContext{Markdown: "draft text"}

	prompt := SystemPrompt(doc, "")
	if !strings.Contains(prompt, `article titled "Untitled"`) {
		t.Error("missing title should fall back to Untitled")
	}
}

func TestSystemPrompt_NoContext(t *testing.T) {
	prompt := SystemPrompt(nil, "")
	if prompt != PersonaPrompt {
		t.Error("bare prompt should be exactly the persona")
	}
}

func TestResearchPrompt(t *testing.T) {
	prompt := ResearchPrompt("quantum batteries", []string{"solid state", "anode"})
	if !strings.Contains(prompt, "Topic: quantum batteries") {
		t.Error("prompt should carry the topic")
	}
	if !strings.Contains(prompt, "Keywords: solid state, anode") {
		t.Error("prompt should join the keywords")
	}

	prompt = ResearchPrompt("quantum batteries", nil)
	if !strings.Contains(prompt, "Keywords: None provided") {
		t.Error("missing keywords should read None provided")
	}
}

func TestGeneratePrompt_OptionalSections(t *testing.T) {
	prompt := GeneratePrompt("My Title", "", "")
	if strings.Contains(prompt, "Follow this outline") {
		t.Error("outline section should be omitted when empty")
	}
	if strings.Contains(prompt, "Use this research data") {
		t.Error("research section should be omitted when empty")
	}

	prompt = GeneratePrompt("My Title", "1. Intro", "facts here")
	if !strings.Contains(prompt, "Follow this outline:\n1. Intro") {
		t.Error("outline section missing")
	}
	if !strings.Contains(prompt, "Use this research data:\nfacts here") {
		t.Error("research section missing")
	}
}
