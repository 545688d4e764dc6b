// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the coursegen CLI. It wires the
// generation pipeline (decompose, research, synthesize, validate,
// parse) to the SQLite job and document stores and exposes each
// surface as a subcommand.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/coursegen/internal/secrets"
	"github.com/pdiddy/coursegen/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, otherwise the secret value
// for key if one was loaded.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the coursegen CLI.
var rootCmd = &cobra.Command{
	Use:   "coursegen",
	Short: "Generate structured study material from a topic",
	Long: `coursegen turns a study topic into a structured document: it splits the
topic into sub-questions, researches web evidence for each, synthesizes a
draft with a language model, validates diagrams and references, and parses
the accepted draft into a typed block tree stored in SQLite.

Run a generation with "generate", inspect jobs with "jobs", and read the
finished document with "show".`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./coursegen.yaml or ~/.config/coursegen/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory for the SQLite database (default: data)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("coursegen")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "coursegen"))
		}
	}

	viper.SetEnvPrefix("COURSEGEN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the CLI logger. Verbose mode switches to the
// human-readable development encoder at debug level.
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// buildConfig assembles the pipeline configuration from the config
// file, environment, and loaded secrets.
func buildConfig(cmd *cobra.Command) types.Config {
	cfg := types.Config{
		AI: types.AIConfig{
			Model:          viper.GetString("ai.model"),
			FallbackModel:  viper.GetString("ai.fallback_model"),
			APIKey:         secretDefault("openai-api-key", viper.GetString("ai.api_key")),
			BaseURL:        viper.GetString("ai.base_url"),
			MaxRetries:     viper.GetInt("ai.max_retries"),
			RequestTimeout: viper.GetDuration("ai.request_timeout"),
		},
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("search.timeout"),
				UserAgent: "coursegen/0.1",
			},
			APIKey:             secretDefault("search-api-key", viper.GetString("search.api_key")),
			ResultsPerQuestion: viper.GetInt("search.results_per_question"),
			DomainFilter:       viper.GetStringSlice("search.domain_filter"),
		},
		Pipeline: types.PipelineConfig{
			MaxRetries:       viper.GetInt("pipeline.max_retries"),
			RetryDelay:       viper.GetDuration("pipeline.retry_delay"),
			MinDraftChars:    viper.GetInt("pipeline.min_draft_chars"),
			TargetWords:      viper.GetInt("pipeline.target_words"),
			FormatReferences: true,
		},
		Store: types.StoreConfig{
			DataDir: viper.GetString("store.data_dir"),
		},
	}

	if cfg.AI.Model == "" {
		cfg.AI.Model = "gpt-4o-mini"
	}
	if cfg.AI.FallbackModel == "" {
		cfg.AI.FallbackModel = "gpt-4o"
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 30 * time.Second
	}
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.Store.DataDir = dataDir
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
