package handlers

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pivotlp/internal/config"
)

// NewAnalyzeCmd creates the analyze command for one-shot CLI analysis
func NewAnalyzeCmd() *cobra.Command {
	var withPivots bool

	cmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: "Analyze a competitor URL and print the service summary",
		Long: `Analyze a competitor URL from the command line without starting the server.

Prints the structured service summary as JSON. With --pivots, also generates
the 6 pivot concepts derived from the summary.

Examples:
  pivotlp analyze https://example.com
  pivotlp analyze https://example.com --pivots`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], withPivots)
		},
	}

	cmd.Flags().BoolVar(&withPivots, "pivots", false, "also generate pivot concepts")

	return cmd
}

func runAnalyze(cmd *cobra.Command, url string, withPivots bool) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	summary, err := p.Analyze(ctx, url)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")

	if !withPivots {
		return out.Encode(summary)
	}

	pivots, err := p.Pivots(ctx, summary)
	if err != nil {
		return fmt.Errorf("pivot generation failed: %w", err)
	}

	return out.Encode(map[string]any{
		"analyzed": summary,
		"pivots":   pivots,
	})
}
