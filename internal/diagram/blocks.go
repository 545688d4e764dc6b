// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package diagram

import (
	"fmt"
	"strings"
)

const (
	// FenceStart opens an embedded diagram block in draft text.
	FenceStart = "```mermaid"

	// FenceEnd closes a fenced block.
	FenceEnd = "```"
)

// FencedBlocks extracts the bodies of all fenced diagram blocks in a
// draft. An unterminated fence runs to end of input.
func FencedBlocks(text string) []string {
	var blocks []string
	var body []string
	inBlock := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case !inBlock && strings.HasPrefix(trimmed, FenceStart):
			inBlock = true
			body = nil
		case inBlock && trimmed == FenceEnd:
			inBlock = false
			blocks = append(blocks, strings.Join(body, "\n"))
		case inBlock:
			body = append(body, line)
		}
	}
	if inBlock {
		blocks = append(blocks, strings.Join(body, "\n"))
	}
	return blocks
}

// CheckDraft validates every fenced diagram block in a draft and returns
// the combined error list. An empty result means all diagrams pass.
func CheckDraft(text string) []string {
	var errs []string
	for i, block := range FencedBlocks(text) {
		res := Validate(block)
		for _, e := range res.Errors {
			errs = append(errs, fmt.Sprintf("diagram %d: %s", i+1, e))
		}
	}
	return errs
}
