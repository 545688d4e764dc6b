// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/pdiddy/coursegen/pkg/types"
)

// --- mock provider ---

type mockProvider struct {
	name    string
	results map[string][]types.EvidenceSnippet
	errs    map[string]error
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Search(_ context.Context, query string, _ []string, _ int) ([]types.EvidenceSnippet, error) {
	if err, ok := m.errs[query]; ok {
		return nil, err
	}
	return m.results[query], nil
}

func snippet(title, url string) types.EvidenceSnippet {
	return types.EvidenceSnippet{Title: title, URL: url, Rank: 1}
}

func TestResearchMergesInQuestionOrder(t *testing.T) {
	p := &mockProvider{
		name: "mock",
		results: map[string][]types.EvidenceSnippet{
			"q1": {snippet("A", "https://a.edu")},
			"q2": {snippet("B", "https://b.gov"), snippet("C", "https://c.edu")},
			"q3": {snippet("D", "https://d.org")},
		},
	}

	out := Research(context.Background(), p, []string{"q1", "q2", "q3"}, types.SearchConfig{}, zap.NewNop())
	if len(out.Failed) != 0 {
		t.Fatalf("Failed = %v, want none", out.Failed)
	}
	titles := make([]string, len(out.Snippets))
	for i, s := range out.Snippets {
		titles[i] = s.Title
	}
	got := strings.Join(titles, ",")
	if got != "A,B,C,D" {
		t.Errorf("merged order = %q, want A,B,C,D", got)
	}
}

func TestResearchSkipsFailedQuestions(t *testing.T) {
	p := &mockProvider{
		name: "mock",
		results: map[string][]types.EvidenceSnippet{
			"good": {snippet("A", "https://a.edu")},
		},
		errs: map[string]error{
			"bad": errors.New("rate limited"),
		},
	}

	out := Research(context.Background(), p, []string{"good", "bad"}, types.SearchConfig{}, zap.NewNop())
	if len(out.Snippets) != 1 {
		t.Fatalf("len(Snippets) = %d, want 1", len(out.Snippets))
	}
	if len(out.Failed) != 1 || out.Failed[0] != "bad" {
		t.Errorf("Failed = %v, want [bad]", out.Failed)
	}
}

func TestResearchAllQuestionsFail(t *testing.T) {
	p := &mockProvider{
		name: "mock",
		errs: map[string]error{
			"q1": errors.New("down"),
			"q2": errors.New("down"),
		},
	}

	out := Research(context.Background(), p, []string{"q1", "q2"}, types.SearchConfig{}, zap.NewNop())
	if len(out.Snippets) != 0 {
		t.Errorf("len(Snippets) = %d, want 0", len(out.Snippets))
	}
	if len(out.Failed) != 2 {
		t.Errorf("len(Failed) = %d, want 2", len(out.Failed))
	}
}

func TestBuildContext(t *testing.T) {
	snippets := []types.EvidenceSnippet{
		{Title: "First Law", Description: "Energy is conserved.", URL: "https://phys.edu/1", Rank: 1},
		{Title: "Heat and Work", URL: "https://phys.edu/2", Rank: 2},
	}

	got := BuildContext(snippets)
	for _, want := range []string{"[1] First Law", "Energy is conserved.", "Source: https://phys.edu/1", "[2] Heat and Work"} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}
}

func TestBuildContextEmpty(t *testing.T) {
	if got := BuildContext(nil); got != "" {
		t.Errorf("BuildContext(nil) = %q, want empty", got)
	}
}
