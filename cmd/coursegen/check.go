// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/coursegen/internal/diagram"
	"github.com/pdiddy/coursegen/internal/docparse"
	"github.com/pdiddy/coursegen/internal/mathfix"
	"github.com/pdiddy/coursegen/internal/refcheck"
	"github.com/pdiddy/coursegen/pkg/types"
)

var checkCmd = &cobra.Command{
	Use:   "check <draft.md>",
	Short: "Validate a draft file offline",
	Long: `Check runs the diagram and reference validators plus the math
normalizer and parser against a Markdown draft on disk, without calling any
external service. Useful for inspecting why a generated document carried
warnings, or for testing prompt changes against saved drafts.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("provide exactly one draft file")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	draft := string(data)

	failures := 0

	refs := refcheck.Check(draft)
	fmt.Printf("references: %d total, %d academic (%.0f%%), %d banned\n",
		refs.TotalCount, refs.AcademicCount, refs.AcademicPercentage, refs.BannedCount)
	for _, e := range refs.Errors {
		fmt.Printf("  FAIL %s\n", e)
		failures++
	}

	diagrams := diagram.FencedBlocks(draft)
	fmt.Printf("diagrams: %d found\n", len(diagrams))
	for _, e := range diagram.CheckDraft(draft) {
		fmt.Printf("  FAIL %s\n", e)
		failures++
	}

	normalized := mathfix.Normalize(draft)
	if normalized != draft {
		fmt.Println("math: normalization would change the draft")
	} else {
		fmt.Println("math: clean")
	}

	doc, err := docparse.Parse(normalized, docparse.Options{FormatReferences: true})
	if err != nil {
		return fmt.Errorf("parsing draft: %w", err)
	}
	fmt.Printf("parsed: %d blocks (%d headings, %d paragraphs, %d lists, %d diagrams, %d reference lists)\n",
		len(doc.Blocks),
		doc.CountKind(types.BlockHeading),
		doc.CountKind(types.BlockParagraph),
		doc.CountKind(types.BlockList),
		doc.CountKind(types.BlockDiagram),
		doc.CountKind(types.BlockReferenceList))
	for _, heading := range doc.Headings() {
		fmt.Printf("  # %s\n", heading)
	}

	if failures > 0 {
		return fmt.Errorf("%d validation failure(s)", failures)
	}
	return nil
}
