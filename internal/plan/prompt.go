// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package plan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yavuztopsever/obsidian-llm-suite/internal/httputil"
	"github.com/yavuztopsever/obsidian-llm-suite/pkg/types"
)

// planningSystemPrompt instructs the planning model to decompose a query
// into a deep tree of topic notes with per-note content instructions.
const planningSystemPrompt = `You are a research planning assistant. Your task is to create a deep hierarchical research plan based on the user's query, returned as structured JSON.

STRICT REQUIREMENTS:
- Create a DEEP hierarchy with 3-5 levels (including the root level 0).
- Generate a TOTAL of 10-15 notes (including the root).
- Ensure the hierarchy is balanced and logical.

Instructions:
1. Analyze the user query.
2. Break down the main topic into logical sub-topics, focusing on DEPTH rather than BREADTH.
3. Organize the topics into a tree with a single root note.
4. Ensure paths from the root to the deepest leaves are 3-5 levels deep (root=0, deepest=2-4).
5. For EACH note, write detailed "instructions" for a subsequent AI to generate content for that specific topic.
6. Assign a unique "id", the correct "parent_id" (null ONLY for the root), and the correct "level" (0 for root, parent level + 1 otherwise) to each note.

Return a JSON object with a "notes" array. Each element must have exactly the fields: id (string), title (string), instructions (string), parent_id (string or null), level (integer). Ensure every parent_id references an id present in the array.`

// planSchema is the JSON Schema the planning backend must conform to.
// Field meanings match types.TopicNote.
const planSchema = `{
  "type": "object",
  "properties": {
    "notes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "title": {"type": "string"},
          "instructions": {"type": "string"},
          "parent_id": {"type": ["string", "null"]},
          "level": {"type": "integer"}
        },
        "required": ["id", "title", "instructions", "parent_id", "level"],
        "additionalProperties": false
      }
    }
  },
  "required": ["notes"],
  "additionalProperties": false
}`

// openaiAPIURL is the OpenAI chat completions endpoint. Package-level var
// for test substitution.
var openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIBackend plans research structures through the OpenAI API using
// structured output, so the response is schema-conformant JSON or an error.
type OpenAIBackend struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Client    *http.Client
}

// NewOpenAIBackend builds a planning backend from config.
func NewOpenAIBackend(cfg types.PlanningConfig) *OpenAIBackend {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 32000
	}
	return &OpenAIBackend{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: maxTokens,
		Timeout:   cfg.RequestTimeout,
	}
}

// openaiRequest is the request body for the OpenAI chat completions API.
type openaiRequest struct {
	Model          string          `json:"model"`
	Messages       []openaiMessage `json:"messages"`
	MaxTokens      int             `json:"max_completion_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// openaiMessage is a single message in the chat conversation.
type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat requests schema-constrained structured output.
type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// openaiResponse is the response body from the chat completions API.
type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}

// planEnvelope wraps the notes array in the structured output.
type planEnvelope struct {
	Notes []types.TopicNote `json:"notes"`
}

// Plan sends the research query to the OpenAI API and returns the proposed
// topic notes. The call is bounded by the configured request timeout.
func (c *OpenAIBackend) Plan(ctx context.Context, query string) ([]types.TopicNote, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	reqBody := openaiRequest{
		Model: c.Model,
		Messages: []openaiMessage{
			{Role: "system", Content: planningSystemPrompt},
			{Role: "user", Content: query},
		},
		MaxTokens: c.MaxTokens,
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchema{
				Name:   "research_structure",
				Strict: true,
				Schema: json.RawMessage(planSchema),
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openaiAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("OpenAI API returned %d: %s", resp.StatusCode, string(body))
	}

	var oResp openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return nil, fmt.Errorf("decoding OpenAI response: %w", err)
	}

	if len(oResp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI API returned no choices")
	}

	var envelope planEnvelope
	if err := json.Unmarshal([]byte(oResp.Choices[0].Message.Content), &envelope); err != nil {
		return nil, fmt.Errorf("parsing plan JSON: %w", err)
	}

	return envelope.Notes, nil
}
