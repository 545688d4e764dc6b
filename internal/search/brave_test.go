// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/coursegen/pkg/types"
)

const braveFixture = `{
  "web": {
    "results": [
      {"title": "First Law of Thermodynamics", "description": "Energy conservation.", "url": "https://physics.mit.edu/first-law"},
      {"title": "Internal Energy", "description": "State function U.", "url": "https://hyperphysics.phy-astr.gsu.edu/u"},
      {"title": "Extra Result", "description": "Should be cut.", "url": "https://example.edu/extra"}
    ]
  }
}`

func testProvider(t *testing.T, handler http.HandlerFunc) *BraveProvider {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	orig := braveAPIBase
	braveAPIBase = ts.URL
	t.Cleanup(func() { braveAPIBase = orig })

	return &BraveProvider{
		Client: ts.Client(),
		Config: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{UserAgent: "coursegen-test/0.1"},
			APIKey:     "brave-key",
		},
	}
}

func TestBraveSearch(t *testing.T) {
	var gotQuery, gotToken string
	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotToken = r.Header.Get("X-Subscription-Token")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(braveFixture))
	})

	snippets, err := p.Search(context.Background(), "first law of thermodynamics", []string{"edu", "gov"}, 2)
	require.NoError(t, err)

	assert.Equal(t, "brave-key", gotToken)
	assert.Contains(t, gotQuery, "first law of thermodynamics")
	assert.Contains(t, gotQuery, "site:edu OR site:gov")

	require.Len(t, snippets, 2, "results truncated to maxResults")
	assert.Equal(t, "First Law of Thermodynamics", snippets[0].Title)
	assert.Equal(t, 1, snippets[0].Rank)
	assert.Equal(t, "https://physics.mit.edu/first-law", snippets[0].URL)
	assert.Equal(t, 2, snippets[1].Rank)
}

func TestBraveSearchEmptyQuery(t *testing.T) {
	p := testProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(braveFixture))
	})

	_, err := p.Search(context.Background(), "   ", nil, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty search query")
}

func TestBraveSearchHTTPError(t *testing.T) {
	p := testProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := p.Search(context.Background(), "query", nil, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
}

func TestBraveSearchBadJSON(t *testing.T) {
	p := testProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := p.Search(context.Background(), "query", nil, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing search response")
}

func TestBuildQueryNoFilter(t *testing.T) {
	if got := buildQuery("plain", nil); got != "plain" {
		t.Errorf("buildQuery = %q, want %q", got, "plain")
	}
}

func TestBuildQuerySingleDomain(t *testing.T) {
	got := buildQuery("q", []string{"scielo.br"})
	if !strings.Contains(got, "site:scielo.br") {
		t.Errorf("buildQuery = %q, missing site operator", got)
	}
}
