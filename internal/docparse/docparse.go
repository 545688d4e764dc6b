// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docparse converts normalized draft text into a tree of typed
// content blocks. The parser is a single-pass, line-oriented state
// machine with four accumulator states: none, in-paragraph, in-list, and
// in-diagram-block. It is total over non-empty input: fallback policies
// guarantee at least one block is produced.
package docparse

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/coursegen/internal/diagram"

	"github.com/pdiddy/coursegen/pkg/types"
)

// ErrNestedDocument reports a block whose text is itself a serialized
// document. That is an upstream double-encoding bug, not real content,
// so the parser refuses the whole document rather than embedding it.
var ErrNestedDocument = errors.New("block contains a serialized document")

const (
	// paraBreakLen is the accumulator size past which a line starting
	// with an uppercase letter begins a new paragraph. A heuristic, not
	// a sentence-boundary guarantee.
	paraBreakLen = 200

	// paraForceLen bounds paragraph block size outright.
	paraForceLen = 400

	// minChunkLen filters noise chunks in the blank-line fallback split.
	minChunkLen = 50
)

// Options controls optional parser behavior.
type Options struct {
	// FormatReferences enables per-entry normalization of the
	// references section into a reference_list block.
	FormatReferences bool
}

var (
	headingPattern      = regexp.MustCompile(`^(#{1,3})\s+(.+)$`)
	bulletPattern       = regexp.MustCompile(`^[-*•]\s+(.+)$`)
	quotePattern        = regexp.MustCompile(`^>\s*(.+)$`)
	calloutLabelPattern = regexp.MustCompile(`^\*\*([^*:]+):\*\*\s*(.*)$`)
	boldMarkerPattern   = regexp.MustCompile(`\*\*([^*]*)\*\*`)
	refHeadingPattern   = regexp.MustCompile(`(?i)^(references?|referências?|bibliografia):?$`)
	refEntryPattern     = regexp.MustCompile(`^\s*(?:\d+[.)]|\[\d+\])\s+(.+)$`)
)

// Parse converts draft text into a StructuredDocument. The document
// title is the first level-1 heading, or empty when the draft has none;
// callers fill in a fallback title. Parse never returns an empty block
// list for non-blank input.
func Parse(text string, opts Options) (*types.StructuredDocument, error) {
	p := &parser{opts: opts}
	blocks := p.run(text)

	if len(blocks) == 0 && strings.TrimSpace(text) != "" {
		blocks = fallbackChunks(text)
	}
	if len(blocks) == 0 && strings.TrimSpace(text) != "" {
		blocks = []types.ContentBlock{{Kind: types.BlockParagraph, Text: strings.TrimSpace(text)}}
	}

	doc := &types.StructuredDocument{Title: firstTitle(blocks), Blocks: blocks}
	if err := rejectNested(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// parser holds the accumulator state for one pass.
type parser struct {
	opts   Options
	blocks []types.ContentBlock

	para    []string
	list    []string
	diag    []string
	inDiag  bool
	inRefs  bool
	refList []string
}

func (p *parser) run(text string) []types.ContentBlock {
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t")
		trimmed := strings.TrimSpace(line)

		if p.inDiag {
			if trimmed == diagram.FenceEnd {
				p.flushDiagram()
				continue
			}
			p.diag = append(p.diag, line)
			continue
		}

		switch {
		case trimmed == "":
			p.flushPara()
			p.flushList()

		case strings.HasPrefix(trimmed, diagram.FenceStart):
			p.flushAll()
			p.inDiag = true
			p.diag = nil

		case strings.HasPrefix(trimmed, "```"):
			// Non-diagram fence lines carry no content of their own.

		case headingPattern.MatchString(trimmed):
			p.flushAll()
			m := headingPattern.FindStringSubmatch(trimmed)
			heading := stripBold(strings.TrimSpace(m[2]))
			p.inRefs = p.opts.FormatReferences && refHeadingPattern.MatchString(heading)
			p.blocks = append(p.blocks, types.ContentBlock{
				Kind:  types.BlockHeading,
				Level: len(m[1]),
				Text:  heading,
			})

		case p.inRefs && refEntryPattern.MatchString(trimmed):
			p.flushPara()
			p.flushList()
			m := refEntryPattern.FindStringSubmatch(trimmed)
			p.refList = append(p.refList, normalizeReference(m[1]))

		case bulletPattern.MatchString(trimmed):
			p.flushPara()
			m := bulletPattern.FindStringSubmatch(trimmed)
			p.list = append(p.list, strings.TrimSpace(m[1]))

		case quotePattern.MatchString(trimmed):
			p.flushAll()
			m := quotePattern.FindStringSubmatch(trimmed)
			p.blocks = append(p.blocks, types.ContentBlock{
				Kind: types.BlockCallout,
				Text: stripBold(strings.TrimSpace(m[1])),
			})

		case calloutLabelPattern.MatchString(trimmed):
			p.flushAll()
			m := calloutLabelPattern.FindStringSubmatch(trimmed)
			callout := strings.TrimSpace(m[1])
			if rest := strings.TrimSpace(m[2]); rest != "" {
				callout += ": " + stripBold(rest)
			}
			p.blocks = append(p.blocks, types.ContentBlock{
				Kind: types.BlockCallout,
				Text: callout,
			})

		default:
			p.appendParagraphLine(trimmed)
		}
	}

	p.flushAll()
	if p.inDiag {
		p.flushDiagram()
	}
	return p.blocks
}

// appendParagraphLine grows the paragraph accumulator with two bounds:
// past paraBreakLen a new uppercase-led line starts a fresh paragraph,
// and past paraForceLen the paragraph is flushed unconditionally.
func (p *parser) appendParagraphLine(line string) {
	if len(p.list) > 0 {
		p.flushList()
	}
	if accumLen(p.para) > paraBreakLen && startsUpper(line) {
		p.flushPara()
	}
	p.para = append(p.para, line)
	if accumLen(p.para) > paraForceLen {
		p.flushPara()
	}
}

func (p *parser) flushAll() {
	p.flushPara()
	p.flushList()
	p.flushRefs()
}

func (p *parser) flushPara() {
	if len(p.para) == 0 {
		return
	}
	text := strings.TrimSpace(strings.Join(p.para, " "))
	p.para = nil
	if text == "" {
		return
	}
	p.blocks = append(p.blocks, types.ContentBlock{Kind: types.BlockParagraph, Text: text})
}

func (p *parser) flushList() {
	if len(p.list) == 0 {
		return
	}
	p.blocks = append(p.blocks, types.ContentBlock{Kind: types.BlockList, Items: p.list})
	p.list = nil
}

func (p *parser) flushRefs() {
	if len(p.refList) == 0 {
		return
	}
	p.blocks = append(p.blocks, types.ContentBlock{Kind: types.BlockReferenceList, Entries: p.refList})
	p.refList = nil
	p.inRefs = false
}

// flushDiagram validates the accumulated fence body. Blocks whose
// critical errors survive repair become a visible plain-text paragraph
// instead of invalid DSL; degraded-but-renderable diagrams are kept.
func (p *parser) flushDiagram() {
	p.inDiag = false
	body := strings.Join(p.diag, "\n")
	p.diag = nil
	if strings.TrimSpace(body) == "" {
		return
	}

	res := diagram.Validate(body)
	if res.Critical {
		p.blocks = append(p.blocks, types.ContentBlock{
			Kind: types.BlockParagraph,
			Text: diagram.FallbackText(res),
		})
		return
	}
	p.blocks = append(p.blocks, types.ContentBlock{Kind: types.BlockDiagram, DSL: res.FixedText})
}

// fallbackChunks splits the input on blank lines and keeps chunks of
// meaningful size as paragraphs. Used when the structured pass found
// nothing to emit.
func fallbackChunks(text string) []types.ContentBlock {
	var blocks []types.ContentBlock
	for _, chunk := range regexp.MustCompile(`\n\s*\n`).Split(text, -1) {
		chunk = strings.TrimSpace(chunk)
		if len(chunk) < minChunkLen {
			continue
		}
		blocks = append(blocks, types.ContentBlock{
			Kind: types.BlockParagraph,
			Text: strings.Join(strings.Fields(chunk), " "),
		})
	}
	return blocks
}

// rejectNested enforces the double-encoding guard: no text-bearing field
// may itself parse as a serialized document.
func rejectNested(doc *types.StructuredDocument) error {
	for i, b := range doc.Blocks {
		for _, field := range []string{b.Text, b.DSL} {
			if strings.HasPrefix(strings.TrimSpace(field), "{") {
				return fmt.Errorf("block %d (%s): %w", i, b.Kind, ErrNestedDocument)
			}
		}
	}
	return nil
}

// normalizeReference reformats one numbered reference entry: line breaks
// are inserted before the URL and access-date sub-fields, then excess
// breaks are collapsed.
func normalizeReference(entry string) string {
	s := strings.TrimSpace(entry)
	s = regexp.MustCompile(`\s+(https?://)`).ReplaceAllString(s, "\n${1}")
	s = regexp.MustCompile(`\s+((?:Disponível em|Available at|Acesso em|Accessed):)`).ReplaceAllString(s, "\n${1}")
	s = regexp.MustCompile(`\n{2,}`).ReplaceAllString(s, "\n")
	return s
}

// firstTitle returns the text of the first level-1 heading.
func firstTitle(blocks []types.ContentBlock) string {
	for _, b := range blocks {
		if b.Kind == types.BlockHeading && b.Level == 1 {
			return b.Text
		}
	}
	return ""
}

// stripBold removes **bold** markers, keeping the inner text.
func stripBold(s string) string {
	return boldMarkerPattern.ReplaceAllString(s, "${1}")
}

func accumLen(lines []string) int {
	n := 0
	for _, l := range lines {
		n += len(l) + 1
	}
	return n
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}
