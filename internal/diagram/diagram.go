// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package diagram validates and repairs embedded Mermaid blocks found in
// generated drafts. Validation runs a fixed sequence of structural checks
// over a best-effort repaired copy of the input; callers decide whether a
// failing block is retried, replaced with a plain-text fallback, or
// accepted with warnings.
package diagram

import (
	"fmt"
	"regexp"
	"strings"
)

// Result is the outcome of validating one diagram block.
type Result struct {
	// Valid is true when no check failed on the repaired text.
	Valid bool

	// Errors lists one message per failed check, in check order.
	Errors []string

	// Critical is true when at least one failed check would break
	// rendering (unknown type, leftover markup, bad identifiers,
	// unbalanced brackets). Non-critical failures, such as orphan
	// nodes, degrade the diagram but still render.
	Critical bool

	// FixedText is the repaired DSL. Validating FixedText again yields
	// the same text (repair is a fixed point).
	FixedText string
}

// validTypes is the allow-list of diagram type keywords.
var validTypes = map[string]bool{
	"flowchart":       true,
	"graph":           true,
	"sequenceDiagram": true,
	"stateDiagram":    true,
	"stateDiagram-v2": true,
	"classDiagram":    true,
	"gantt":           true,
}

// Validate repairs the block, runs the structural checks in order, and
// reports the result. The checks over the repaired text are:
//
//  1. declared type is on the allow-list
//  2. no raw HTML tags other than <br/>
//  3. no Unicode arrow glyphs
//  4. node identifiers are alphanumeric
//  5. no orphan nodes; at least nodeCount-1 edges
//  6. bracket/brace/paren balance
//  7. style directives only after node and edge declarations
func Validate(dsl string) Result {
	fixed := Repair(dsl)
	res := Result{FixedText: fixed}

	addErr := func(critical bool, format string, args ...any) {
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
		if critical {
			res.Critical = true
		}
	}

	kind, ok := declaredType(fixed)
	if !ok {
		addErr(true, "unknown diagram type %q", kind)
	}

	for _, tag := range disallowedTags(fixed) {
		addErr(true, "HTML tag %s not allowed inside diagram; use <br/> line breaks", tag)
	}

	for _, arrow := range unicodeArrows(fixed) {
		addErr(true, "unicode arrow %q; use ASCII arrow sequences (-->, <--)", arrow)
	}

	// Structural node/edge checks apply to the flow grammars only; the
	// sequence, class, and gantt grammars have no node declarations.
	if ok && (kind == "graph" || kind == "flowchart" || strings.HasPrefix(kind, "stateDiagram")) {
		g := parseGraph(fixed)

		for _, id := range g.badIDs {
			addErr(true, "node identifier %q is not alphanumeric", id)
		}

		if len(g.nodes) > 1 {
			if g.edges < len(g.nodes)-1 {
				addErr(false, "diagram declares %d nodes but only %d edges; expected at least %d", len(g.nodes), g.edges, len(g.nodes)-1)
			}
			for _, id := range g.orphans() {
				addErr(false, "node %q participates in no edge", id)
			}
		}

		if g.styleBeforeDecl {
			addErr(false, "style directives must appear after all node and edge declarations")
		}
	}

	if !balanced(fixed) {
		addErr(true, "unbalanced brackets, braces, or parentheses")
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// FallbackText is the plain-text notice substituted for a diagram whose
// critical errors survive repair. Keeping a visible marker beats emitting
// DSL that breaks the renderer downstream.
func FallbackText(res Result) string {
	reason := "invalid syntax"
	if len(res.Errors) > 0 {
		reason = res.Errors[0]
	}
	return fmt.Sprintf("[diagram removed: %s]", reason)
}

// declaredType returns the first token of the first non-empty line and
// whether it is on the allow-list.
func declaredType(dsl string) (string, bool) {
	for _, line := range strings.Split(dsl, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		kind := trimmed
		if i := strings.IndexAny(trimmed, " \t"); i >= 0 {
			kind = trimmed[:i]
		}
		return kind, validTypes[kind]
	}
	return "", false
}

// htmlTagPattern matches any angle-bracket tag.
var htmlTagPattern = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*[^<>]*/?>`)

// brTagPattern matches the one tag Mermaid labels accept.
var brTagPattern = regexp.MustCompile(`(?i)^<br\s*/?>$`)

// disallowedTags returns the distinct raw HTML tags in the text, <br/> excluded.
func disallowedTags(dsl string) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, tag := range htmlTagPattern.FindAllString(dsl, -1) {
		if brTagPattern.MatchString(tag) || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// unicodeArrowSet lists the arrow glyphs models like to emit in place of
// ASCII arrow sequences.
var unicodeArrowSet = []string{"→", "←", "↔", "⇒", "⇐", "⇔"}

// unicodeArrows returns the distinct Unicode arrow glyphs present.
func unicodeArrows(dsl string) []string {
	var found []string
	for _, a := range unicodeArrowSet {
		if strings.Contains(dsl, a) {
			found = append(found, a)
		}
	}
	return found
}

// balanced checks bracket/brace/paren balance across the whole block.
func balanced(dsl string) bool {
	var stack []rune
	pairs := map[rune]rune{']': '[', ')': '(', '}': '{'}
	for _, r := range dsl {
		switch r {
		case '[', '(', '{':
			stack = append(stack, r)
		case ']', ')', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}
