// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "coursegen/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds settings for the language model client.
type AIConfig struct {
	// Model is the primary model identifier used for synthesis.
	Model string `json:"model" yaml:"model"`

	// FallbackModel is the stronger model used when the primary model
	// produces an empty or too-short draft. Empty disables escalation.
	FallbackModel string `json:"fallback_model,omitempty" yaml:"fallback_model,omitempty"`

	// APIKey is the bearer token for the model provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint, for self-hosted gateways
	// and tests. Empty uses the provider default.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxRetries is the total attempt budget for a single completion
	// request, the initial call included (default 3, so two retries).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RequestTimeout is the hard wall-clock limit per attempt (default 120s).
	// An attempt exceeding it is aborted, not abandoned to run on.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// BackoffBase is the first retry delay (default 2s). Each retry
	// doubles it, capped at BackoffCap (default 10s).
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base"`
	BackoffCap  time.Duration `json:"backoff_cap" yaml:"backoff_cap"`
}

// SearchConfig holds settings for the evidence research stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey authenticates against the search API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// ResultsPerQuestion is the number of top results kept per
	// sub-question (default 2).
	ResultsPerQuestion int `json:"results_per_question" yaml:"results_per_question"`

	// DomainFilter restricts results to trusted domains. Empty means
	// no restriction.
	DomainFilter []string `json:"domain_filter,omitempty" yaml:"domain_filter,omitempty"`
}

// PipelineConfig holds settings for the generation orchestrator.
type PipelineConfig struct {
	// MaxRetries is the number of full synthesize-and-validate cycles
	// after the first attempt (default 2). On exhaustion the last draft
	// is accepted with warnings rather than failed.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RetryDelay is the pause between validation retries (default 2s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`

	// MinDraftChars is the minimum draft length below which synthesis
	// escalates to the fallback model (default 200).
	MinDraftChars int `json:"min_draft_chars" yaml:"min_draft_chars"`

	// TargetWords is the draft length goal; a first attempt far below it
	// triggers a retry with expanded context (default 800).
	TargetWords int `json:"target_words" yaml:"target_words"`

	// FormatReferences enables per-entry normalization of the references
	// section during parsing.
	FormatReferences bool `json:"format_references" yaml:"format_references"`
}

// StoreConfig holds settings for the job and document stores.
type StoreConfig struct {
	// DataDir is the directory holding the SQLite database and exports.
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Config groups all stage configurations for the pipeline.
type Config struct {
	AI       AIConfig       `json:"ai" yaml:"ai"`
	Search   SearchConfig   `json:"search" yaml:"search"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Store    StoreConfig    `json:"store" yaml:"store"`
}
