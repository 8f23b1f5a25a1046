package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prokopidis/presidio/internal/doctor"
)

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run preflight checks on the anonymizer configuration",
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "emit the report as JSON")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	report := doctor.Run(cmd.Context())

	if doctorJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		for _, c := range report.Checks {
			marker := map[string]string{"pass": "ok  ", "warn": "warn", "fail": "FAIL"}[c.Status]
			fmt.Printf("[%s] %-20s %s\n", marker, c.Name, c.Message)
			if c.Fix != "" && c.Status != "pass" {
				fmt.Printf("       fix: %s\n", c.Fix)
			}
		}
		fmt.Printf("\n%d passed, %d warnings, %d failures\n",
			report.Summary.Pass, report.Summary.Warn, report.Summary.Fail)
	}

	if report.Status == "fail" {
		return fmt.Errorf("doctor found %d failing check(s)", report.Summary.Fail)
	}
	return nil
}
