package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/covenant/internal/catalog"
	"github.com/opensource-finance/covenant/internal/domain"
)

func newPatternsCmd(opts *rootOptions) *cobra.Command {
	var (
		docType string
		export  bool
	)

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the risk patterns in the catalog",
		Long:  "List the patterns that apply to a document type, or export the catalog as a YAML pattern file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadAnalyzer(opts)
			if err != nil {
				return err
			}
			cat := a.Catalog()
			out := cmd.OutOrStdout()

			if export {
				data, err := catalog.Marshal(cat.Version(), cat.Patterns())
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			var patterns []*catalog.Pattern
			if docType == "" {
				for _, def := range cat.Patterns() {
					if p, ok := cat.Get(def.ID); ok {
						patterns = append(patterns, p)
					}
				}
			} else {
				dt := domain.ParseDocumentType(docType)
				patterns = append(patterns, cat.Lookup(dt)...)
				patterns = append(patterns, cat.Supplementary(dt)...)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tSEVERITY\tSCOPE\tNAME")
			for _, p := range patterns {
				scope := "generic"
				if p.Config.Supplementary {
					scope = "supplementary"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID(), p.Config.Category, p.Config.Severity, scope, p.Config.Name)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d patterns, catalog %s\n", len(patterns), cat.Version())
			return nil
		},
	}

	cmd.Flags().StringVar(&docType, "type", "", "only patterns applicable to this document type")
	cmd.Flags().BoolVar(&export, "export", false, "print the catalog as a YAML pattern file")
	return cmd
}
