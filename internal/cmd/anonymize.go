package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prokopidis/presidio/internal/config"
)

var (
	anonymizeText       string
	anonymizeInputFile  string
	anonymizeOutputFile string
	anonymizeReversible bool
	anonymizeEntities   []string
)

var anonymizeCmd = &cobra.Command{
	Use:   "anonymize",
	Short: "Anonymize PII in text and print the result as JSON",
	Example: `  # Anonymize text from a file and print to console
  presidio anonymize --input-file input.txt

  # Anonymize text provided directly and save to a file
  presidio anonymize --text "Ο Γιάννης μένει στην Αθήνα. Τηλ 6936745127." --output-file out.json

  # Reversible mode: include entity mappings for later deanonymization
  presidio anonymize --input-file input.txt --reversible`,
	RunE: runAnonymize,
}

func init() {
	anonymizeCmd.Flags().StringVar(&anonymizeText, "text", "", "direct text input to anonymize")
	anonymizeCmd.Flags().StringVar(&anonymizeInputFile, "input-file", "", "path to the input file (UTF-8 encoded)")
	anonymizeCmd.Flags().StringVar(&anonymizeOutputFile, "output-file", "", "path to write results (JSON); stdout when omitted")
	anonymizeCmd.Flags().BoolVar(&anonymizeReversible, "reversible", false, "emit entity mappings for deanonymization")
	anonymizeCmd.Flags().StringSliceVar(&anonymizeEntities, "entities", nil, "entity types to anonymize (default: configured set)")
	anonymizeCmd.MarkFlagsMutuallyExclusive("text", "input-file")
	rootCmd.AddCommand(anonymizeCmd)
}

func runAnonymize(cmd *cobra.Command, args []string) error {
	input, err := resolveInput()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if anonymizeReversible {
		cfg.Reversible = true
	}
	if len(anonymizeEntities) > 0 {
		cfg.Entities = anonymizeEntities
	}

	pipeline, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	records, err := pipeline.Anonymize(cmd.Context(), input)
	if err != nil {
		return fmt.Errorf("anonymizing: %w", err)
	}
	log.Info().Int("paragraphs", len(records)).Msg("anonymization complete")

	out, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}

	if anonymizeOutputFile != "" {
		if err := os.WriteFile(anonymizeOutputFile, append(out, '\n'), 0o600); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
		log.Info().Str("path", anonymizeOutputFile).Msg("results written")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func resolveInput() (string, error) {
	switch {
	case anonymizeText != "":
		return anonymizeText, nil
	case anonymizeInputFile != "":
		data, err := os.ReadFile(anonymizeInputFile)
		if err != nil {
			return "", fmt.Errorf("reading input file: %w", err)
		}
		return string(data), nil
	case viper.GetString("text") != "":
		return viper.GetString("text"), nil
	default:
		return "", fmt.Errorf("either --text or --input-file is required")
	}
}
