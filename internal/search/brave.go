// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/coursegen/internal/httputil"

	"github.com/pdiddy/coursegen/pkg/types"
)

// braveAPIBase is the Brave web search endpoint. Declared as a var so
// tests can substitute an httptest server.
var braveAPIBase = "https://api.search.brave.com/res/v1/web/search"

// BraveProvider queries the Brave Search API.
type BraveProvider struct {
	Client *http.Client
	Config types.SearchConfig
}

// Name returns the provider identifier.
func (p *BraveProvider) Name() string { return "brave" }

// Search queries the API for one sub-question. A non-empty domainFilter
// is folded into the query as site: operators, restricting results to
// trusted sources.
func (p *BraveProvider) Search(ctx context.Context, query string, domainFilter []string, maxResults int) ([]types.EvidenceSnippet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if maxResults <= 0 {
		maxResults = 2
	}

	params := url.Values{
		"q":     {buildQuery(query, domainFilter)},
		"count": {fmt.Sprintf("%d", maxResults)},
	}
	reqURL := braveAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.Config.UserAgent)
	if p.Config.APIKey != "" {
		req.Header.Set("X-Subscription-Token", p.Config.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, p.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("search API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned HTTP %d", resp.StatusCode)
	}

	var br braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	var snippets []types.EvidenceSnippet
	for i, r := range br.Web.Results {
		if i >= maxResults {
			break
		}
		snippets = append(snippets, types.EvidenceSnippet{
			Title:       r.Title,
			Description: r.Description,
			URL:         r.URL,
			Rank:        i + 1,
		})
	}
	return snippets, nil
}

// buildQuery appends site: operators for the domain filter. Multiple
// domains are OR-ed, following the search API's operator grammar.
func buildQuery(query string, domainFilter []string) string {
	if len(domainFilter) == 0 {
		return query
	}
	sites := make([]string, len(domainFilter))
	for i, d := range domainFilter {
		sites[i] = "site:" + d
	}
	return query + " (" + strings.Join(sites, " OR ") + ")"
}

// braveResponse mirrors the fields of the API response the pipeline uses.
type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
		} `json:"results"`
	} `json:"web"`
}
