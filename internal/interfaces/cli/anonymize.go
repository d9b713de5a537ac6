package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracefold/anonymizer/internal/anonymizer"
	"github.com/tracefold/anonymizer/internal/config"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/internal/intelligence/common"
	"github.com/tracefold/anonymizer/internal/intelligence/entity"
)

var (
	anonymizeFile    string
	anonymizeInclude []string
	anonymizeAudit   bool
	anonymizeNoModel bool
)

func newAnonymizeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anonymize [text]",
		Short: "Anonymize a single document from an argument, a file, or stdin",
		Long:  "Runs one document through the detection pipeline and prints the redacted\ntext to stdout. Without --no-model the configured NER endpoint is queried;\nwhen it is unreachable the document still gets pattern-based redaction.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnonymize(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&anonymizeFile, "file", "f", "", "read the document from this file instead of stdin")
	cmd.Flags().StringSliceVar(&anonymizeInclude, "include", nil, "restrict detection to these entity types (e.g. PERSON,EMAIL)")
	cmd.Flags().BoolVar(&anonymizeAudit, "audit", true, "print the audit log as JSON to stderr (--audit=false to suppress)")
	cmd.Flags().BoolVar(&anonymizeNoModel, "no-model", false, "skip the NER endpoint and use pattern detectors only")

	return cmd
}

func runAnonymize(cmd *cobra.Command, opts *rootOptions, args []string) error {
	text, err := readDocument(cmd, args)
	if err != nil {
		return err
	}

	// A one-shot run should work on a laptop with no config file and no
	// backing services, so a failed load falls back to built-in defaults.
	cfg, err := loadConfig(opts)
	if err != nil {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:       "warn",
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return err
	}

	labels, matcher, err := buildDetection(cfg)
	if err != nil {
		return err
	}

	var source anonymizer.EntitySource
	if !anonymizeNoModel {
		client, err := common.NewHTTPServingClient(common.ClientConfig{
			BaseURL:    cfg.Model.BaseURL,
			Timeout:    cfg.Model.Timeout,
			MaxRetries: cfg.Model.MaxRetries,
		}, logger)
		if err != nil {
			return err
		}
		defer client.Close()

		registry := common.NewRegistry()
		if err := registry.Register(cfg.Model.EntityModel, func() (common.ServingClient, error) {
			return client, nil
		}); err != nil {
			return err
		}
		handle, err := registry.Get(cfg.Model.EntityModel)
		if err != nil {
			return err
		}
		source = entity.NewRecognizer(handle, entity.Config{
			Model:               cfg.Model.EntityModel,
			ConfidenceThreshold: cfg.Model.ConfidenceThreshold,
		}, logger)
	}

	engine := anonymizer.NewEngine(source, matcher, labels,
		anonymizer.Policy(cfg.Anonymizer.OverlapPolicy), logger)

	redacted, auditLog, err := engine.Anonymize(cmd.Context(), text, anonymizer.Options{
		IncludeTypes: anonymizeInclude,
		Audit:        anonymizeAudit,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), redacted)

	if anonymizeAudit {
		enc := json.NewEncoder(cmd.ErrOrStderr())
		enc.SetIndent("", "  ")
		if err := enc.Encode(auditLog); err != nil {
			return err
		}
	}
	return nil
}

// readDocument resolves the input text: a positional argument wins, then
// --file, then stdin.
func readDocument(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if anonymizeFile != "" {
		data, err := os.ReadFile(anonymizeFile)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return string(data), nil
}
