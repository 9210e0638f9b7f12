// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "o4-mini", "sonar-pro").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxTokens caps the response length for a single call.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RequestTimeout bounds a single API call (default 180s).
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
}

// PlanningConfig holds settings for the planning stage.
type PlanningConfig struct {
	AIConfig `yaml:",inline"`
}

// ContentConfig holds settings for the content generation stage.
type ContentConfig struct {
	AIConfig `yaml:",inline"`

	// SearchContextSize controls how much web search context the content
	// backend gathers: "low", "default", or "high".
	SearchContextSize string `json:"search_context_size" yaml:"search_context_size"`
}

// ResearchConfig groups the settings for a full research run.
type ResearchConfig struct {
	Planning PlanningConfig `json:"planning" yaml:"planning"`
	Content  ContentConfig  `json:"content" yaml:"content"`

	// OutputDir is the vault directory generated notes are written into.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Strict promotes the soft plan-shape bounds (depth, note count) from
	// logged warnings to validation errors.
	Strict bool `json:"strict" yaml:"strict"`

	// Index controls whether generated notes are recorded in the vault index.
	Index bool `json:"index" yaml:"index"`
}

// IndexConfig holds settings for the vault index.
type IndexConfig struct {
	// VaultDir is the vault directory the index lives under
	// (the database is created at VaultDir/.obsidian-research/index.db).
	VaultDir string `json:"vault_dir" yaml:"vault_dir"`

	// MaxResults is the default maximum number of search results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}
