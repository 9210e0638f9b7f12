// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"text/template"
	"time"

	"github.com/yavuztopsever/obsidian-llm-suite/internal/httputil"
	"github.com/yavuztopsever/obsidian-llm-suite/pkg/types"
)

// contentSystemPrompt instructs the content model. The backend relies on the
// model's online search to ground the generated content and collect sources.
const contentSystemPrompt = `You are a research assistant. Your task is to generate comprehensive and well-structured content based on the provided instructions. Use your online capabilities to research the topic thoroughly.

Instructions:
1. Follow the user's instructions strictly.
2. Generate the main content in well-formatted Markdown: headings, lists, code blocks, emphasis as appropriate.
3. Extract a list of the most important concepts or keywords discussed in the content, as raw strings with no '#'.
4. If you use external web sources, list them with titles and URLs.

Return a JSON object with exactly these fields: "content" (the generated Markdown), "concepts" (array of raw concept strings), "sources" (array of {"title", "url"} objects, possibly empty).`

// contentPromptTmpl wraps a topic's instructions for the user message.
var contentPromptTmpl = template.Must(template.New("content").Parse(`Please generate the content based on the following instructions:

---
{{.Instructions}}
---
`))

// contentSchema is the JSON Schema for a generated note body.
// Field meanings match types.GeneratedContent.
const contentSchema = `{
  "type": "object",
  "properties": {
    "content": {"type": "string"},
    "concepts": {"type": "array", "items": {"type": "string"}},
    "sources": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "url": {"type": "string"}
        },
        "required": ["title", "url"],
        "additionalProperties": false
      }
    }
  },
  "required": ["content", "concepts", "sources"],
  "additionalProperties": false
}`

// thinkBlockPattern matches the <think> preamble some reasoning models emit
// before the JSON payload.
var thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>\s*`)

// perplexityAPIURL is the Perplexity chat completions endpoint. Package-level
// var for test substitution.
var perplexityAPIURL = "https://api.perplexity.ai/chat/completions"

// PerplexityBackend generates note content through the Perplexity API, which
// performs its own web search and returns schema-constrained JSON.
type PerplexityBackend struct {
	APIKey            string
	Model             string
	MaxTokens         int
	SearchContextSize string
	Timeout           time.Duration
	Client            *http.Client
}

// NewPerplexityBackend builds a content backend from config.
func NewPerplexityBackend(cfg types.ContentConfig) *PerplexityBackend {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	searchContext := cfg.SearchContextSize
	if searchContext == "" {
		searchContext = "high"
	}
	return &PerplexityBackend{
		APIKey:            cfg.APIKey,
		Model:             cfg.Model,
		MaxTokens:         maxTokens,
		SearchContextSize: searchContext,
		Timeout:           cfg.RequestTimeout,
	}
}

// perplexityRequest is the request body for the Perplexity chat completions API.
type perplexityRequest struct {
	Model            string              `json:"model"`
	Messages         []perplexityMessage `json:"messages"`
	Temperature      float64             `json:"temperature"`
	MaxTokens        int                 `json:"max_tokens"`
	ResponseFormat   *responseFormat     `json:"response_format,omitempty"`
	WebSearchOptions *webSearchOptions   `json:"web_search_options,omitempty"`
}

// perplexityMessage is a single message in the chat conversation.
type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat requests schema-constrained structured output.
type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Schema json.RawMessage `json:"schema"`
}

// webSearchOptions tunes the backend's server-side web search.
type webSearchOptions struct {
	SearchContextSize string `json:"search_context_size"`
}

// perplexityResponse is the response body from the chat completions API.
type perplexityResponse struct {
	Choices []perplexityChoice `json:"choices"`
}

type perplexityChoice struct {
	Message perplexityMessage `json:"message"`
}

// Generate sends a topic's instructions to the Perplexity API and returns
// the generated content. The call is bounded by the configured request
// timeout; a timeout surfaces as an ordinary generation failure.
func (c *PerplexityBackend) Generate(ctx context.Context, instructions string) (types.GeneratedContent, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	prompt, err := renderPrompt(instructions)
	if err != nil {
		return types.GeneratedContent{}, fmt.Errorf("rendering prompt: %w", err)
	}

	reqBody := perplexityRequest{
		Model: c.Model,
		Messages: []perplexityMessage{
			{Role: "system", Content: contentSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.4,
		MaxTokens:   c.MaxTokens,
		ResponseFormat: &responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchema{Schema: json.RawMessage(contentSchema)},
		},
		WebSearchOptions: &webSearchOptions{SearchContextSize: c.SearchContextSize},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return types.GeneratedContent{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, perplexityAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return types.GeneratedContent{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return types.GeneratedContent{}, fmt.Errorf("calling Perplexity API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.GeneratedContent{}, fmt.Errorf("Perplexity API returned %d: %s", resp.StatusCode, string(body))
	}

	var pResp perplexityResponse
	if err := json.NewDecoder(resp.Body).Decode(&pResp); err != nil {
		return types.GeneratedContent{}, fmt.Errorf("decoding Perplexity response: %w", err)
	}

	if len(pResp.Choices) == 0 {
		return types.GeneratedContent{}, fmt.Errorf("Perplexity API returned no choices")
	}

	// Reasoning models may prepend a <think> block before the JSON payload.
	raw := thinkBlockPattern.ReplaceAllString(pResp.Choices[0].Message.Content, "")

	var generated types.GeneratedContent
	if err := json.Unmarshal([]byte(raw), &generated); err != nil {
		return types.GeneratedContent{}, fmt.Errorf("parsing content JSON: %w", err)
	}

	if generated.Content == "" {
		return types.GeneratedContent{}, fmt.Errorf("content backend returned an empty body")
	}

	return generated, nil
}

// renderPrompt executes the content prompt template with the topic instructions.
func renderPrompt(instructions string) (string, error) {
	var buf bytes.Buffer
	if err := contentPromptTmpl.Execute(&buf, struct{ Instructions string }{Instructions: instructions}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
