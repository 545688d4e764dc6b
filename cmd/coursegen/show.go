// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/coursegen/internal/store"
	"github.com/pdiddy/coursegen/pkg/types"
)

var showCmd = &cobra.Command{
	Use:   "show <target-id>",
	Short: "Print the stored document for a target",
	Long: `Show loads the finished document for a target and prints it. The
default rendering is plain text; --format json or --format yaml emits the
typed block tree for downstream consumers.`,
	RunE: runShow,
}

func init() {
	showCmd.Flags().String("format", "text", "output format: text, json, or yaml")

	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("provide exactly one target id")
	}

	st, err := store.Open(buildConfig(cmd).Store)
	if err != nil {
		return err
	}
	defer st.Close()

	doc, err := st.GetDocument(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		return store.ExportJSON(os.Stdout, doc)
	case "yaml":
		return store.ExportYAML(os.Stdout, doc)
	case "text":
		renderText(os.Stdout, doc)
		return nil
	default:
		return fmt.Errorf("unknown format %q: use text, json, or yaml", format)
	}
}

func renderText(w io.Writer, doc *types.StructuredDocument) {
	fmt.Fprintf(w, "%s\n%s\n\n", doc.Title, strings.Repeat("=", len(doc.Title)))

	for _, b := range doc.Blocks {
		switch b.Kind {
		case types.BlockHeading:
			fmt.Fprintf(w, "%s %s\n\n", strings.Repeat("#", b.Level), b.Text)
		case types.BlockParagraph:
			fmt.Fprintf(w, "%s\n\n", b.Text)
		case types.BlockList:
			for _, item := range b.Items {
				fmt.Fprintf(w, "  - %s\n", item)
			}
			fmt.Fprintln(w)
		case types.BlockCallout:
			fmt.Fprintf(w, "  | %s\n\n", b.Text)
		case types.BlockDiagram:
			fmt.Fprintf(w, "[diagram]\n%s\n\n", b.DSL)
		case types.BlockReferenceList:
			fmt.Fprintln(w, "References:")
			for i, entry := range b.Entries {
				fmt.Fprintf(w, "  %d. %s\n", i+1, strings.ReplaceAll(entry, "\n", "\n     "))
			}
			fmt.Fprintln(w)
		}
	}
}
