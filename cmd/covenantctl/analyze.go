package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/covenant/internal/analyzer"
	"github.com/opensource-finance/covenant/internal/domain"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		docType      string
		jurisdiction string
		asJSON       bool
		failOnHigh   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Assess the risks in a document",
		Long:  "Extract metadata and assess risks in a plain-text document. Use - to read from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			a, err := loadAnalyzer(opts)
			if err != nil {
				return err
			}

			report, err := a.Analyze(cmd.Context(), analyzer.Input{
				Text:         text,
				DocumentType: docType,
				Jurisdiction: jurisdiction,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if err := printJSON(out, report); err != nil {
					return err
				}
			} else {
				printReport(out, report)
			}

			if failOnHigh && report.Result.OverallRiskScore == domain.SeverityHigh {
				return fmt.Errorf("document is high risk")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&docType, "type", "", "document type hint (contract, lease, terms_of_service, privacy_policy, loan_agreement)")
	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "jurisdiction hint, e.g. US-CA")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	cmd.Flags().BoolVar(&failOnHigh, "fail-on-high", false, "exit non-zero when the overall risk is high")
	return cmd
}

func printReport(w io.Writer, r *analyzer.Report) {
	res := r.Result
	fmt.Fprintf(w, "Document type:  %s\n", r.Metadata.DocumentType)
	fmt.Fprintf(w, "Jurisdiction:   %s\n", r.Metadata.Jurisdiction)
	if len(r.Metadata.Parties) > 0 {
		fmt.Fprintf(w, "Parties:        %s\n", strings.Join(r.Metadata.Parties, ", "))
	}
	fmt.Fprintf(w, "Overall risk:   %s\n", strings.ToUpper(string(res.OverallRiskScore)))
	fmt.Fprintf(w, "\n%s\n", res.RiskSummary)

	if len(res.Risks) > 0 {
		fmt.Fprintln(w, "\nRisks:")
		for i, risk := range res.Risks {
			fmt.Fprintf(w, "  %2d. [%-6s] %-11s %s\n", i+1, risk.Severity, risk.Category, risk.Description)
		}
	}

	if len(res.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, rec := range res.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}

	fmt.Fprintf(w, "\n%d patterns, %d clauses, catalog %s, %v\n",
		r.PatternsEvaluated, r.ClausesAnalyzed, r.CatalogVersion, r.Duration.Round(time.Microsecond))
}

func newMetadataCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata FILE",
		Short: "Extract parties, dates, amounts and jurisdiction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			a, err := loadAnalyzer(opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.ExtractLegalMetadata(text))
		},
	}
}
