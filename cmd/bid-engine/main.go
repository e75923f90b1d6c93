// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the bid-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/bid-engine/internal/reasoning"
	"github.com/pdiddy/bid-engine/internal/secrets"
	"github.com/pdiddy/bid-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds API keys loaded from .secrets/ at startup.
	loadedSecrets secrets.Secrets

	// logger is the process logger, built in PersistentPreRunE.
	logger = zap.NewNop()
)

// rootCmd is the base command for the bid-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "bid-engine",
	Short: "Bid/no-bid qualification of tender opportunities",
	Long: `bid-engine qualifies inbound tender opportunities. Documents for an
opportunity are ingested into a local corpus; qualify then plans the
analysis, runs one analysis per section concurrently, retries weak
sections with web enrichment, and synthesizes a bid, no-bid, or
conditional-bid recommendation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		l, err := newLogger(verbose)
		if err != nil {
			return err
		}
		logger = l
		zap.ReplaceGlobals(l)

		s, warnings, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		for _, w := range warnings {
			fmt.Fprintln(os.Stderr, "Warning:", w)
		}
		loadedSecrets = s
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", s.Keys())
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./bid-engine.yaml or ~/.config/bid-engine/bid-engine.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "base directory for the corpus database and exports")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug output to stderr")

	_ = viper.BindPFlag("corpus.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	setConfigDefaults(types.DefaultPipelineConfig())
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("bid-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "bid-engine"))
		}
	}

	viper.SetEnvPrefix("BID_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setConfigDefaults registers every config key with viper so that
// environment variables are picked up by Unmarshal.
func setConfigDefaults(d types.PipelineConfig) {
	viper.SetDefault("reasoning.model", d.Reasoning.Model)
	viper.SetDefault("reasoning.api_key", "")
	viper.SetDefault("reasoning.max_tokens", d.Reasoning.MaxTokens)
	viper.SetDefault("reasoning.timeout", d.Reasoning.Timeout)
	viper.SetDefault("reasoning.max_retries", d.Reasoning.MaxRetries)

	viper.SetDefault("corpus.data_dir", d.Corpus.DataDir)
	viper.SetDefault("corpus.preview_size", d.Corpus.PreviewSize)
	viper.SetDefault("corpus.context_size", d.Corpus.ContextSize)
	viper.SetDefault("corpus.converter_image", d.Corpus.ConverterImage)

	viper.SetDefault("orchestration.max_concurrency", d.Orchestration.MaxConcurrency)
	viper.SetDefault("orchestration.enable_evaluation", d.Orchestration.EnableEvaluation)
	viper.SetDefault("orchestration.quality_threshold", d.Orchestration.QualityThreshold)
	viper.SetDefault("orchestration.max_retries", d.Orchestration.MaxRetries)
	viper.SetDefault("orchestration.skip_planning", d.Orchestration.SkipPlanning)
	viper.SetDefault("orchestration.evaluator", d.Orchestration.Evaluator)
}

// loadConfig decodes the merged configuration (defaults, file, env, flags).
func loadConfig() (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.PipelineConfig{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// newBackend builds the reasoning backend. The API key comes from the
// --api-key flag, then config or BID_ENGINE_REASONING_API_KEY, then
// .secrets/anthropic-api-key.
func newBackend(cmd *cobra.Command, cfg types.PipelineConfig) (*reasoning.ClaudeBackend, error) {
	override, _ := cmd.Flags().GetString("api-key")
	if override == "" {
		override = cfg.Reasoning.APIKey
	}
	cfg.Reasoning.APIKey = loadedSecrets.Get(secrets.AnthropicAPIKey, override)
	if cfg.Reasoning.APIKey == "" {
		return nil, fmt.Errorf("no API key: set --api-key, BID_ENGINE_REASONING_API_KEY, or .secrets/%s", secrets.AnthropicAPIKey)
	}
	return reasoning.NewClaudeBackend(cfg.Reasoning, logger), nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
