// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// ReasoningConfig holds settings for the reasoning backend client.
type ReasoningConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxTokens caps the response length of one call (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Timeout bounds a single reasoning call, including rate-limit retries.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retry attempts on HTTP 429/529 (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// CorpusConfig holds settings for the document store.
type CorpusConfig struct {
	// DataDir is the base directory for the store (contains index/, exports/).
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// PreviewSize is the number of snippets the planner previews (default 5).
	PreviewSize int `json:"preview_size" yaml:"preview_size" mapstructure:"preview_size"`

	// ContextSize is the number of snippets each section analysis receives (default 8).
	ContextSize int `json:"context_size" yaml:"context_size" mapstructure:"context_size"`

	// ConverterImage is the container image that turns attachments into
	// Markdown before ingest (default "markitdown:latest").
	ConverterImage string `json:"converter_image" yaml:"converter_image" mapstructure:"converter_image"`
}

// OrchestrationConfig holds the pipeline defaults applied when a run does
// not override them.
type OrchestrationConfig struct {
	MaxConcurrency   int  `json:"max_concurrency" yaml:"max_concurrency" mapstructure:"max_concurrency"`
	EnableEvaluation bool `json:"enable_evaluation" yaml:"enable_evaluation" mapstructure:"enable_evaluation"`
	QualityThreshold int  `json:"quality_threshold" yaml:"quality_threshold" mapstructure:"quality_threshold"`
	MaxRetries       int  `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	SkipPlanning     bool `json:"skip_planning" yaml:"skip_planning" mapstructure:"skip_planning"`

	// Evaluator selects the evaluation policy: "rules" or "reasoning".
	Evaluator string `json:"evaluator" yaml:"evaluator" mapstructure:"evaluator"`
}

// PipelineConfig groups all configuration for the qualification pipeline.
type PipelineConfig struct {
	Reasoning     ReasoningConfig     `json:"reasoning" yaml:"reasoning" mapstructure:"reasoning"`
	Corpus        CorpusConfig        `json:"corpus" yaml:"corpus" mapstructure:"corpus"`
	Orchestration OrchestrationConfig `json:"orchestration" yaml:"orchestration" mapstructure:"orchestration"`
}

// DefaultPipelineConfig returns the configuration used when nothing is set.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Reasoning: ReasoningConfig{
			Model:      "claude-sonnet-4-5-20250929",
			MaxTokens:  4096,
			Timeout:    2 * time.Minute,
			MaxRetries: 3,
		},
		Corpus: CorpusConfig{
			DataDir:     "data",
			PreviewSize: 5,
			ContextSize: 8,

			ConverterImage: "markitdown:latest",
		},
		Orchestration: OrchestrationConfig{
			MaxConcurrency:   DefaultConcurrency,
			EnableEvaluation: true,
			QualityThreshold: 60,
			MaxRetries:       1,
			Evaluator:        "rules",
		},
	}
}

// Validate rejects out-of-range settings.
func (c PipelineConfig) Validate() error {
	o := c.Orchestration
	if o.MaxConcurrency < MinConcurrency || o.MaxConcurrency > MaxConcurrency {
		return fmt.Errorf("orchestration.max_concurrency %d out of range [%d,%d]",
			o.MaxConcurrency, MinConcurrency, MaxConcurrency)
	}
	if o.QualityThreshold < 0 || o.QualityThreshold > 100 {
		return fmt.Errorf("orchestration.quality_threshold %d out of range [0,100]", o.QualityThreshold)
	}
	if o.MaxRetries < 0 {
		return fmt.Errorf("orchestration.max_retries must be >= 0, got %d", o.MaxRetries)
	}
	switch o.Evaluator {
	case "rules", "reasoning":
	default:
		return fmt.Errorf("orchestration.evaluator %q: use rules or reasoning", o.Evaluator)
	}
	if c.Corpus.PreviewSize <= 0 || c.Corpus.ContextSize <= 0 {
		return fmt.Errorf("corpus.preview_size and corpus.context_size must be positive")
	}
	return nil
}
