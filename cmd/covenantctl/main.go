// Covenant - Legal document risk analysis you can self-host.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

// Command covenantctl analyzes documents locally and load-tests a running server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/covenant/internal/analyzer"
	"github.com/opensource-finance/covenant/internal/catalog"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	patternsDir string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "covenantctl",
		Short:   "Covenant CLI for legal document risk analysis",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.patternsDir, "patterns", "", "directory of YAML patterns merged over the built-in catalog")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newAnalyzeCmd(opts),
		newMetadataCmd(opts),
		newPatternsCmd(opts),
		newBenchCmd(),
	)
	return cmd
}

// loadAnalyzer builds an analyzer over the built-in catalog plus any
// patterns found in opts.patternsDir.
func loadAnalyzer(opts *rootOptions) (*analyzer.Analyzer, error) {
	reg, err := catalog.NewRegistry(catalog.Builtin())
	if err != nil {
		return nil, err
	}
	if opts.patternsDir != "" {
		custom, err := catalog.LoadDir(opts.patternsDir)
		if err != nil {
			return nil, err
		}
		if _, err := reg.Reload(custom); err != nil {
			return nil, err
		}
	}
	return analyzer.NewProvider(reg).Analyzer(), nil
}

// readInput reads a file argument, or stdin when the argument is "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
