// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package diagram

import (
	"regexp"
	"sort"
	"strings"
)

// arrowPattern matches the ASCII edge operators of the flow grammars:
// -->, ---, <--, ==>, -.->, and their longer variants.
var arrowPattern = regexp.MustCompile(`<?(?:-{2,}|={2,}|-\.+-)>?`)

// edgeLabelPrefix matches an edge label left at the head of a segment
// after splitting on arrows, as in A -->|yes| B.
var edgeLabelPrefix = regexp.MustCompile(`^\|[^|]*\|`)

// styleDirectives are the order-dependent trailer keywords: they may only
// appear after every node and edge declaration.
var styleDirectives = []string{"style", "classDef", "linkStyle", "class"}

// graphInfo is the structural summary of a flow-grammar diagram body.
type graphInfo struct {
	nodes           map[string]bool
	participants    map[string]bool
	edges           int
	badIDs          []string
	styleBeforeDecl bool
}

// orphans returns declared nodes that participate in no edge, sorted.
func (g *graphInfo) orphans() []string {
	var out []string
	for id := range g.nodes {
		if !g.participants[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// parseGraph scans the body lines of a flow diagram, collecting node
// declarations, edge counts, malformed identifiers, and style-ordering
// violations. This is a structural check, not a full grammar: lines it
// does not understand are skipped rather than rejected.
func parseGraph(dsl string) *graphInfo {
	g := &graphInfo{
		nodes:        make(map[string]bool),
		participants: make(map[string]bool),
	}
	badSeen := make(map[string]bool)
	sawStyle := false
	header := true

	for _, raw := range strings.Split(dsl, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		if header {
			header = false
			continue
		}
		if isStyleDirective(line) {
			sawStyle = true
			continue
		}
		if line == "end" || strings.HasPrefix(line, "subgraph") || strings.HasPrefix(line, "direction ") {
			continue
		}
		if sawStyle {
			g.styleBeforeDecl = true
		}

		segments := arrowPattern.Split(line, -1)
		arrows := len(segments) - 1
		g.edges += arrows

		for _, seg := range segments {
			seg = strings.TrimSpace(seg)
			seg = strings.TrimSpace(edgeLabelPrefix.ReplaceAllString(seg, ""))
			id := nodeID(seg)
			if id == "" {
				continue
			}
			g.nodes[id] = true
			if arrows > 0 {
				g.participants[id] = true
			}
			if !isAlnum(id) && !badSeen[id] {
				badSeen[id] = true
				g.badIDs = append(g.badIDs, id)
			}
		}
	}
	return g
}

// isStyleDirective reports whether the line begins with a style keyword.
func isStyleDirective(line string) bool {
	for _, kw := range styleDirectives {
		if strings.HasPrefix(line, kw+" ") {
			return true
		}
	}
	return false
}

// nodeID extracts the identifier from a segment like A[Start], B(Round),
// C{Decision}, or a bare id. Segments with no leading identifier (edge
// labels, state markers like [*]) yield "".
func nodeID(seg string) string {
	if seg == "" {
		return ""
	}
	i := strings.IndexAny(seg, "[({ \t")
	switch {
	case i == 0:
		return ""
	case i > 0:
		return seg[:i]
	default:
		return seg
	}
}

// isAlnum reports whether the identifier is ASCII letters and digits only.
func isAlnum(id string) bool {
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return id != ""
}
