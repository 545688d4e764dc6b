// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/coursegen/pkg/types"
)

func mustParse(t *testing.T, text string, opts Options) *types.StructuredDocument {
	t.Helper()
	doc, err := Parse(text, opts)
	require.NoError(t, err)
	return doc
}

func TestParseHeadingsAndParagraphs(t *testing.T) {
	doc := mustParse(t, "# Thermodynamics\n\nFirst paragraph text.\n\n## **First Law**\n\nSecond paragraph.", Options{})

	require.Len(t, doc.Blocks, 4)
	assert.Equal(t, types.BlockHeading, doc.Blocks[0].Kind)
	assert.Equal(t, 1, doc.Blocks[0].Level)
	assert.Equal(t, "Thermodynamics", doc.Blocks[0].Text)
	assert.Equal(t, "Thermodynamics", doc.Title)

	assert.Equal(t, types.BlockParagraph, doc.Blocks[1].Kind)

	// Bold markers are stripped from headings.
	assert.Equal(t, types.BlockHeading, doc.Blocks[2].Kind)
	assert.Equal(t, 2, doc.Blocks[2].Level)
	assert.Equal(t, "First Law", doc.Blocks[2].Text)
}

func TestParseList(t *testing.T) {
	doc := mustParse(t, "Intro line.\n- first item\n- second item\n* third item\n\nAfter.", Options{})

	var list *types.ContentBlock
	for i := range doc.Blocks {
		if doc.Blocks[i].Kind == types.BlockList {
			list = &doc.Blocks[i]
		}
	}
	require.NotNil(t, list, "blocks: %+v", doc.Blocks)
	assert.Equal(t, []string{"first item", "second item", "third item"}, list.Items)
}

func TestParseCallouts(t *testing.T) {
	doc := mustParse(t, "> Remember the sign convention.\n\n**Importante:** energia se conserva.", Options{})

	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, types.BlockCallout, doc.Blocks[0].Kind)
	assert.Equal(t, "Remember the sign convention.", doc.Blocks[0].Text)
	assert.Equal(t, types.BlockCallout, doc.Blocks[1].Kind)
	assert.Equal(t, "Importante: energia se conserva.", doc.Blocks[1].Text)
}

func TestParseDiagramBlock(t *testing.T) {
	text := "## Cycle\n\n```mermaid\ngraph TD\nA[Start] --> B[End]\n```\n\nAfter text."
	doc := mustParse(t, text, Options{})

	require.Equal(t, 1, doc.CountKind(types.BlockDiagram))
	for _, b := range doc.Blocks {
		if b.Kind == types.BlockDiagram {
			assert.Equal(t, "graph TD\nA[Start] --> B[End]", b.DSL)
		}
	}
}

func TestParseDiagramRepaired(t *testing.T) {
	text := "```mermaid\ngraphTDA[Start] → B[End]\n```"
	doc := mustParse(t, text, Options{})

	require.Equal(t, 1, doc.CountKind(types.BlockDiagram))
	assert.Equal(t, "graph TD\nA[Start] --> B[End]", doc.Blocks[0].DSL)
}

func TestParseDiagramFallback(t *testing.T) {
	// An unknown diagram type survives repair; the block becomes a
	// visible plain-text notice instead of invalid DSL.
	text := "```mermaid\nmindmap\nroot((x))\n```"
	doc := mustParse(t, text, Options{})

	require.Equal(t, 0, doc.CountKind(types.BlockDiagram))
	require.Equal(t, 1, doc.CountKind(types.BlockParagraph))
	assert.Contains(t, doc.Blocks[0].Text, "diagram removed")
}

func TestParseUnterminatedDiagram(t *testing.T) {
	doc := mustParse(t, "```mermaid\ngraph TD\nA --> B", Options{})
	assert.Equal(t, 1, doc.CountKind(types.BlockDiagram))
}

func TestParseParagraphBreakHeuristic(t *testing.T) {
	long := strings.Repeat("palavra ", 30) // ~240 chars, past the soft bound
	text := long + "\nUppercase continuation line.\nlowercase stays joined."
	doc := mustParse(t, text, Options{})

	// The uppercase line after a long accumulator starts a new paragraph.
	assert.GreaterOrEqual(t, doc.CountKind(types.BlockParagraph), 2)
}

func TestParseForceFlushBoundsBlockSize(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, "some lowercase words that keep accumulating without uppercase starts")
	}
	doc := mustParse(t, strings.Join(lines, "\n"), Options{})

	for _, b := range doc.Blocks {
		if b.Kind == types.BlockParagraph {
			assert.LessOrEqual(t, len(b.Text), paraForceLen+100, "paragraph beyond the force-flush bound")
		}
	}
	assert.Greater(t, doc.CountKind(types.BlockParagraph), 1)
}

func TestParseTotality(t *testing.T) {
	inputs := []string{
		"plain short text",
		"```\nbare fence only\n```",
		strings.Repeat("x", 300),
		"word",
	}
	for _, in := range inputs {
		doc := mustParse(t, in, Options{})
		assert.NotEmpty(t, doc.Blocks, "input %q must yield at least one block", in)
	}
}

func TestParseWholeInputFallback(t *testing.T) {
	// A fence-only input yields nothing from the structured pass and
	// nothing from the chunk split; the whole input becomes one paragraph.
	doc := mustParse(t, "```mermaid\n```", Options{})
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, types.BlockParagraph, doc.Blocks[0].Kind)
}

func TestFallbackChunksFiltersShortNoise(t *testing.T) {
	chunk := strings.Repeat("conteúdo relevante ", 5)
	blocks := fallbackChunks("ok\n\n" + chunk + "\n\nalso short")
	require.Len(t, blocks, 1)
	assert.Equal(t, types.BlockParagraph, blocks[0].Kind)
	assert.Contains(t, blocks[0].Text, "conteúdo relevante")
}

func TestParseNestedDocumentGuard(t *testing.T) {
	_, err := Parse(`{"titulo_geral": "Termodinâmica", "blocos": []}`, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNestedDocument)
}

func TestParseReferenceList(t *testing.T) {
	text := "# Topic\n\nBody.\n\n## Referências\n\n" +
		"1. SMITH, J. Thermodynamics. Available at: https://a.edu/x Accessed: 2026-01-02\n" +
		"2. BROWN, R. Heat. https://b.gov/y\n"
	doc := mustParse(t, text, Options{FormatReferences: true})

	require.Equal(t, 1, doc.CountKind(types.BlockReferenceList))
	var refs types.ContentBlock
	for _, b := range doc.Blocks {
		if b.Kind == types.BlockReferenceList {
			refs = b
		}
	}
	require.Len(t, refs.Entries, 2)
	// Sub-fields moved onto their own lines.
	assert.Contains(t, refs.Entries[0], "\nAvailable at:")
	assert.Contains(t, refs.Entries[1], "\nhttps://b.gov/y")
}

func TestParseReferencesDisabled(t *testing.T) {
	text := "## References\n\n1. one entry here\n2. another entry\n"
	doc := mustParse(t, text, Options{})
	assert.Equal(t, 0, doc.CountKind(types.BlockReferenceList))
}

func TestNormalizeReference(t *testing.T) {
	got := normalizeReference("AUTHOR, A. Title. Available at: https://x.edu/p Accessed: 2026-03-01")
	lines := strings.Split(got, "\n")
	assert.Greater(t, len(lines), 1)
	assert.NotContains(t, got, "\n\n")
}
