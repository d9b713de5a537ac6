// Package cli defines the anonymizerd command tree: the long-running service
// (serve), schema migrations (migrate), a one-shot anonymization pass over a
// file or stdin (anonymize), and training-corpus generation (gen-data).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracefold/anonymizer/internal/anonymizer"
	"github.com/tracefold/anonymizer/internal/config"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand creates the root cobra command with global flags and all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "anonymizerd",
		Short:   "PII anonymization and compliance chat service",
		Long:    "anonymizerd detects and redacts personally identifiable information in\nconversational text, combining model-based entity recognition with\ndeterministic pattern detectors, and serves an HTTP API for anonymization\nand an insurance chat pipeline with audit logging.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file path (default: search ./config.yaml, ./configs/config.yaml, /etc/anonymizer/config.yaml, then ANON_* env)")
	pf.StringVar(&opts.logLevel, "log-level", "", "override configured log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newAnonymizeCmd(opts),
		newGenDataCmd(),
	)

	return cmd
}

// loadConfig resolves configuration with priority: --config flag, then the
// default search paths, then environment variables alone.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	if opts.configPath != "" {
		return config.Load(opts.configPath)
	}

	searchPaths := []string{
		"./config.yaml",
		"./configs/config.yaml",
		"/etc/anonymizer/config.yaml",
	}
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		}
	}

	return config.LoadFromEnv()
}

// newCLILogger builds the process logger from the loaded config, honoring a
// --log-level override.
func newCLILogger(cfg *config.Config, opts *rootOptions) (logging.Logger, error) {
	level := cfg.Log.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	output := cfg.Log.Output
	if output == "" {
		output = "stdout"
	}

	return logging.NewLogger(logging.Config{
		Level:       level,
		Format:      cfg.Log.Format,
		OutputPaths: []string{output},
	})
}

// buildDetection compiles the configured detectors and label tokens into the
// engine's inputs.
func buildDetection(cfg *config.Config) (anonymizer.TokenTable, *anonymizer.MatcherSet, error) {
	labels := anonymizer.TokenTable(cfg.Anonymizer.LabelTokens)
	specs := make([]anonymizer.DetectorSpec, len(cfg.Anonymizer.Detectors))
	for i, d := range cfg.Anonymizer.Detectors {
		specs[i] = anonymizer.DetectorSpec{Name: d.Name, Pattern: d.Pattern, Token: d.Token}
	}
	matcher, err := anonymizer.NewMatcherSet(specs, labels.Tokens())
	if err != nil {
		return nil, nil, err
	}
	return labels, matcher, nil
}

// Execute is the entry point called from main.
func Execute() error {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	return nil
}
