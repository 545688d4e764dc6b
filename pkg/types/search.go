// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the coursegen pipeline:
// generation jobs, evidence snippets, structured documents, and the
// configuration structs consumed by each stage.
package types

// EvidenceSnippet is a single search result used as synthesis context.
// Snippets are immutable and live only for the duration of the job that
// collected them; they are never persisted independently.
type EvidenceSnippet struct {
	// Title is the result title as returned by the search provider.
	Title string `json:"title" yaml:"title"`

	// Description is the provider's snippet or abstract for the result.
	Description string `json:"description" yaml:"description"`

	// URL is the source address.
	URL string `json:"url" yaml:"url"`

	// Rank is the 1-based position of the result within its query.
	Rank int `json:"rank" yaml:"rank"`
}
