// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/coursegen/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List generation jobs and their status",
	Long: `Jobs lists every generation job in the database, newest first, with
its status, progress, and attempt count. Failed jobs show the recorded
error message.`,
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().Bool("json", false, "output jobs as JSON")

	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	st, err := store.Open(buildConfig(cmd).Store)
	if err != nil {
		return err
	}
	defer st.Close()

	jobs, err := st.ListJobs(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-16s  %-12s  %-8s  %-8s  %-40s  %s\n",
		"ID", "Status", "Progress", "Attempts", "Topic", "Detail")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for _, j := range jobs {
		topic := j.Topic
		if len(topic) > 40 {
			topic = topic[:37] + "..."
		}
		detail := j.ProgressMessage
		if j.Error != "" {
			detail = j.Error
		}
		if len(detail) > 60 {
			detail = detail[:57] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-16s  %-12s  %7.0f%%  %8d  %-40s  %s\n",
			j.ID, string(j.Status), j.Progress*100, j.Attempts, topic, detail)
	}
	return nil
}
