// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/coursegen/internal/llm"
	"github.com/pdiddy/coursegen/internal/pipeline"
	"github.com/pdiddy/coursegen/internal/search"
	"github.com/pdiddy/coursegen/internal/store"
	"github.com/pdiddy/coursegen/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate <topic>",
	Short: "Generate a structured study document for a topic",
	Long: `Generate runs the full pipeline for one topic: decomposes it into
sub-questions, researches evidence, synthesizes a draft, validates it, and
stores the parsed document. The job is persisted up front, so its progress
and outcome survive in the database even when the run is interrupted.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("target", "", "target id the document belongs to (default: derived from topic)")
	generateCmd.Flags().StringSlice("tags", nil, "topic labels attached to the job")
	generateCmd.Flags().String("model", "", "override the synthesis model")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a study topic")
	}
	topic := strings.Join(args, " ")

	cfg := buildConfig(cmd)
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.AI.Model = model
	}
	if cfg.AI.APIKey == "" {
		return fmt.Errorf("missing model API key: add openai-api-key to .secrets/ or set ai.api_key")
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := llm.NewOpenAIClient(cfg.AI)
	if err != nil {
		return err
	}
	retrier := llm.NewRetrier(client, cfg.AI, logger)

	provider := &search.BraveProvider{
		Client: &http.Client{Timeout: cfg.Search.Timeout},
		Config: cfg.Search,
	}

	target, _ := cmd.Flags().GetString("target")
	if target == "" {
		target = slugify(topic)
	}
	tags, _ := cmd.Flags().GetStringSlice("tags")

	now := time.Now().UTC()
	job := &types.GenerationJob{
		ID:        newJobID(),
		TargetID:  target,
		Topic:     topic,
		Tags:      tags,
		Status:    types.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateJob(cmd.Context(), job); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "job %s: generating document for %q (target %s)\n", job.ID, topic, target)

	p := pipeline.New(retrier, provider, st, st, cfg, logger)
	if err := p.RunJob(cmd.Context(), job); err != nil {
		return fmt.Errorf("job %s failed: %w", job.ID, err)
	}

	doc, err := st.GetDocument(context.Background(), target)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "job %s: completed, %d blocks (%d headings, %d diagrams)\n",
		job.ID, len(doc.Blocks),
		doc.CountKind(types.BlockHeading), doc.CountKind(types.BlockDiagram))
	if job.ProgressMessage != "" && strings.Contains(job.ProgressMessage, "warnings") {
		fmt.Fprintf(os.Stdout, "  %s\n", job.ProgressMessage)
	}
	return nil
}

// newJobID returns a random 8-byte hex identifier.
func newJobID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// slugify derives a filesystem- and URL-safe target id from a topic.
func slugify(topic string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(topic) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
