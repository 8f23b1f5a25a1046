package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prokopidis/presidio/internal/anonymizer"
)

var deanonymizeInputFile string

var deanonymizeCmd = &cobra.Command{
	Use:   "deanonymize",
	Short: "Reconstruct original text from reversible anonymization output",
	Long: `Reads the JSON records produced by "presidio anonymize --reversible" and
prints the reconstructed original text, one paragraph per line. Fails when a
record lacks the entity mapping needed to invert a placeholder.`,
	RunE: runDeanonymize,
}

func init() {
	deanonymizeCmd.Flags().StringVar(&deanonymizeInputFile, "input-file", "", "path to the anonymization results JSON")
	_ = deanonymizeCmd.MarkFlagRequired("input-file")
	rootCmd.AddCommand(deanonymizeCmd)
}

func runDeanonymize(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(deanonymizeInputFile)
	if err != nil {
		return fmt.Errorf("reading input file: %w", err)
	}

	var records []anonymizer.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decoding records: %w", err)
	}

	paragraphs := make([]string, 0, len(records))
	for i, rec := range records {
		text, err := anonymizer.Deanonymize(rec.Masked, rec.Spans, rec.EntityMapping)
		if err != nil {
			return fmt.Errorf("paragraph %d: %w", i, err)
		}
		paragraphs = append(paragraphs, text)
	}

	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(paragraphs, "\n"))
	return nil
}
