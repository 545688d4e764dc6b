// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mathfix repairs malformed math delimiters in generated text
// before parsing. The rules form an ordered pipeline of pure text
// transforms; later rules assume the cleanup done by earlier ones. The
// pass is lossy-safe: it adds delimiters or removes known-corrupt
// placeholder tokens, never legitimate mathematical content.
package mathfix

import (
	"regexp"
	"strings"
)

// maxSpanLen bounds how far an unterminated span may reach before the
// closing delimiter is considered genuinely missing content, not a typo.
const maxSpanLen = 60

// Rule is one named transform in the normalization pipeline.
type Rule struct {
	Name  string
	Apply func(string) string
}

// placeholderPatterns is the fixed set of corrupted tokens left behind by
// upstream substitution bugs.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile("�+"),
	regexp.MustCompile(`@@MATH_?\d+@@`),
	regexp.MustCompile(`%%EQ_\d+%%`),
}

var (
	strayDelimPattern  = regexp.MustCompile(`(?m)(^|[ \t])\$([ \t]|$)`)
	bareCommandPattern = regexp.MustCompile(`(?m)^(\\[a-zA-Z]+[^$\n]*?=[^$\n]+)$`)
	inlineSpanPattern  = regexp.MustCompile(`(^|[^$])\$([^$\n]+?)\$($|[^$])`)
	innerSpacePattern  = regexp.MustCompile(`\$\$[ \t]*([^$\n]*?)[ \t]*\$\$`)
)

// Rules is the normalization pipeline, applied in order by Normalize.
var Rules = []Rule{
	{"strip-corrupt-placeholders", stripPlaceholders},
	{"drop-stray-delimiters", dropStrayDelimiters},
	{"close-unterminated-spans", closeUnterminatedSpans},
	{"promote-bare-commands", promoteBareCommands},
	{"inline-to-display", inlineToDisplay},
	{"trim-delimiter-whitespace", trimDelimiterWhitespace},
}

// Normalize runs the full rule pipeline over the text. Running Normalize
// on its own output is a no-op.
func Normalize(text string) string {
	for _, rule := range Rules {
		text = rule.Apply(text)
	}
	return text
}

func stripPlaceholders(s string) string {
	for _, p := range placeholderPatterns {
		s = p.ReplaceAllString(s, "")
	}
	return s
}

// dropStrayDelimiters removes isolated $ characters surrounded by
// whitespace. Runs of strays need repeated passes because the matches
// share their whitespace boundaries.
func dropStrayDelimiters(s string) string {
	for {
		next := strayDelimPattern.ReplaceAllString(s, "${1}${2}")
		if next == s {
			return s
		}
		s = next
	}
}

// closeUnterminatedSpans wraps a line's trailing unpaired $ span in
// display delimiters when the span is short enough to plausibly be a
// formula with a dropped closer.
func closeUnterminatedSpans(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.Count(line, "$")%2 == 0 {
			continue
		}
		at := strings.LastIndex(line, "$")
		span := line[at+1:]
		if span == "" || len(span) > maxSpanLen {
			continue
		}
		lines[i] = line[:at] + "$$" + span + "$$"
	}
	return strings.Join(lines, "\n")
}

// promoteBareCommands wraps a whole-line LaTeX expression, a command
// followed by an equality, in display delimiters when no delimiters are
// present. Lines inside an open multi-line display block are already
// wrapped by the surrounding delimiter lines and are left alone.
func promoteBareCommands(s string) string {
	lines := strings.Split(s, "\n")
	inBlock := false
	for i, line := range lines {
		if !inBlock && bareCommandPattern.MatchString(line) {
			lines[i] = "$$" + line + "$$"
		}
		if strings.Count(line, "$$")%2 == 1 {
			inBlock = !inBlock
		}
	}
	return strings.Join(lines, "\n")
}

// inlineToDisplay rewrites single-delimiter inline spans to the
// double-delimiter convention. The non-$ boundaries keep already-wrapped
// spans from being wrapped again.
func inlineToDisplay(s string) string {
	return inlineSpanPattern.ReplaceAllString(s, "${1}$$$$${2}$$$$${3}")
}

// trimDelimiterWhitespace removes whitespace hugging the inside of
// display delimiters.
func trimDelimiterWhitespace(s string) string {
	return innerSpacePattern.ReplaceAllString(s, "$$$$${1}$$$$")
}
