// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// BlockKind tags one variant of ContentBlock. The set is closed: the
// parser emits no other kinds, and renderers may switch exhaustively.
type BlockKind string

const (
	BlockHeading       BlockKind = "heading"
	BlockParagraph     BlockKind = "paragraph"
	BlockList          BlockKind = "list"
	BlockCallout       BlockKind = "callout"
	BlockDiagram       BlockKind = "diagram"
	BlockReferenceList BlockKind = "reference_list"
)

// ContentBlock is one typed node of a structured document. Which fields
// are meaningful depends on Kind:
//
//	heading         Level, Text
//	paragraph       Text
//	list            Items
//	callout         Text
//	diagram         DSL
//	reference_list  Entries
//
// A block's Text or DSL must never itself be a serialized document; the
// parser rejects such input as an upstream double-encoding bug.
type ContentBlock struct {
	Kind BlockKind `json:"kind" yaml:"kind"`

	// Level is the heading depth (1-3). Zero for non-heading blocks.
	Level int `json:"level,omitempty" yaml:"level,omitempty"`

	// Text is the block body for heading, paragraph, and callout blocks.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Items holds list entries for list blocks.
	Items []string `json:"items,omitempty" yaml:"items,omitempty"`

	// DSL is the diagram source for diagram blocks.
	DSL string `json:"dsl,omitempty" yaml:"dsl,omitempty"`

	// Entries holds normalized citation lines for reference_list blocks.
	Entries []string `json:"entries,omitempty" yaml:"entries,omitempty"`
}

// StructuredDocument is the durable output of a generation job: a title
// plus an ordered tree of typed content blocks. Documents are replaced
// wholesale, never mutated in place.
type StructuredDocument struct {
	Title  string         `json:"title" yaml:"title"`
	Blocks []ContentBlock `json:"blocks" yaml:"blocks"`
}

// Headings returns the texts of all heading blocks, in document order.
func (d StructuredDocument) Headings() []string {
	var out []string
	for _, b := range d.Blocks {
		if b.Kind == BlockHeading {
			out = append(out, b.Text)
		}
	}
	return out
}

// CountKind returns the number of blocks of the given kind.
func (d StructuredDocument) CountKind(kind BlockKind) int {
	n := 0
	for _, b := range d.Blocks {
		if b.Kind == kind {
			n++
		}
	}
	return n
}
