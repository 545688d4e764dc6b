// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search collects web evidence for a generation job. A Provider
// answers one query; Research fans a job's sub-questions out across the
// provider concurrently and merges the results.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/coursegen/pkg/types"
)

// Provider searches a single external API. Implementations follow the
// Strategy pattern so tests can supply a mock.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, domainFilter []string, maxResults int) ([]types.EvidenceSnippet, error)
}

// Output holds merged snippets plus per-question diagnostics.
type Output struct {
	Snippets []types.EvidenceSnippet

	// Failed lists sub-questions whose search failed. Failures are
	// non-fatal: the job proceeds with whatever evidence was collected.
	Failed []string
}

// Research runs one search per sub-question concurrently and concatenates
// the results in question order. A provider error for an individual
// question is logged and skipped, never aborts the batch.
func Research(ctx context.Context, provider Provider, questions []string, cfg types.SearchConfig, logger *zap.Logger) Output {
	if logger == nil {
		logger = zap.NewNop()
	}

	perQuestion := cfg.ResultsPerQuestion
	if perQuestion <= 0 {
		perQuestion = 2
	}

	results := make([][]types.EvidenceSnippet, len(questions))
	errs := make([]error, len(questions))

	var wg sync.WaitGroup
	for i, q := range questions {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			snippets, err := provider.Search(ctx, q, cfg.DomainFilter, perQuestion)
			results[i] = snippets
			errs[i] = err
		}(i, q)
	}
	wg.Wait()

	var out Output
	for i, q := range questions {
		if errs[i] != nil {
			logger.Warn("search failed for sub-question",
				zap.String("provider", provider.Name()),
				zap.String("question", q),
				zap.Error(errs[i]))
			out.Failed = append(out.Failed, q)
			continue
		}
		out.Snippets = append(out.Snippets, results[i]...)
	}
	return out
}

// BuildContext renders snippets into the evidence section of a synthesis
// prompt. Each snippet becomes a numbered entry with title, description,
// and source URL.
func BuildContext(snippets []types.EvidenceSnippet) string {
	if len(snippets) == 0 {
		return ""
	}
	var b strings.Builder
	for i, s := range snippets {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, s.Title)
		if s.Description != "" {
			fmt.Fprintf(&b, "%s\n", s.Description)
		}
		if s.URL != "" {
			fmt.Fprintf(&b, "Source: %s\n", s.URL)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
