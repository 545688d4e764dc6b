// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package diagram

import (
	"regexp"
	"strings"
)

// gluedHeaderPattern matches a diagram-type keyword glued to its direction
// token, as models sometimes emit: graphTDA[Start] instead of
// "graph TD" followed by "A[Start]".
var gluedHeaderPattern = regexp.MustCompile(`^(graph|flowchart)(TB|TD|BT|RL|LR)(.*)$`)

// arrowReplacements maps Unicode arrow glyphs to their ASCII sequences.
var arrowReplacements = []struct{ from, to string }{
	{"↔", "<-->"},
	{"→", "-->"},
	{"←", "<--"},
	{"⇔", "<==>"},
	{"⇒", "==>"},
	{"⇐", "<=="},
}

// greekReplacements spells out Greek letters, which Mermaid node labels
// handle poorly across renderers.
var greekReplacements = []struct{ from, to string }{
	{"α", "alpha"}, {"β", "beta"}, {"γ", "gamma"}, {"δ", "delta"},
	{"Δ", "Delta"}, {"ε", "epsilon"}, {"θ", "theta"}, {"λ", "lambda"},
	{"μ", "mu"}, {"π", "pi"}, {"ρ", "rho"}, {"σ", "sigma"},
	{"Σ", "Sigma"}, {"τ", "tau"}, {"φ", "phi"}, {"ω", "omega"},
	{"Ω", "Omega"},
}

// blankRunPattern matches runs of blank lines.
var blankRunPattern = regexp.MustCompile(`\n{3,}`)

// Repair applies the best-effort cleanup pass: split glued headers,
// substitute Unicode arrows and Greek letters, convert raw HTML tags to
// <br/> or strip them, and collapse blank-line runs. Repair never drops
// diagram content; it only rewrites tokens into forms the renderer
// accepts. Repair is idempotent.
func Repair(dsl string) string {
	s := strings.ReplaceAll(dsl, "\r\n", "\n")
	s = splitGluedHeader(s)

	for _, r := range arrowReplacements {
		s = strings.ReplaceAll(s, r.from, r.to)
	}
	for _, r := range greekReplacements {
		s = strings.ReplaceAll(s, r.from, r.to)
	}

	s = convertTags(s)
	s = blankRunPattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// splitGluedHeader inserts the missing separator after a glued type and
// direction token, moving any trailing declaration to its own line:
// graphTDA[Start] becomes "graph TD\nA[Start]".
func splitGluedHeader(dsl string) string {
	lines := strings.Split(dsl, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		m := gluedHeaderPattern.FindStringSubmatch(line)
		if m == nil {
			return dsl
		}
		header := m[1] + " " + m[2]
		rest := strings.TrimSpace(m[3])
		if rest == "" {
			lines[i] = header
		} else {
			lines[i] = header + "\n" + rest
		}
		return strings.Join(lines, "\n")
	}
	return dsl
}

// blockTagPattern matches closing block-level tags whose meaning inside a
// label is a line break.
var blockTagPattern = regexp.MustCompile(`(?i)^</(p|div)>$`)

// convertTags rewrites raw HTML inside the DSL: <br> variants and closing
// block tags become the <br/> line-break token, everything else is
// stripped.
func convertTags(dsl string) string {
	return htmlTagPattern.ReplaceAllStringFunc(dsl, func(tag string) string {
		if brTagPattern.MatchString(tag) || blockTagPattern.MatchString(tag) {
			return "<br/>"
		}
		return ""
	})
}
