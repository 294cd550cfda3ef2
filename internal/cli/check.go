package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/wikiclaim/internal/pipeline"
)

var (
	outJSON  string
	outMD    string
	noFooter bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <input.json>",
	Short: "Assemble an item and check it against the notability rules",
	Long: `Check assembles the item for one business and evaluates:
- Provenance: at least one claim carries a reference
- Breadth: at least 3 distinct properties
- Typing: an "instance of" (P31) claim
- The external notability assessment, when the input carries one

It also computes an advisory readiness score. The command exits non-zero
when the item would not be published.

Example:
  wikiclaim check acme.json
  wikiclaim check acme.json --json report.json --md report.md`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	// Output flags
	checkCmd.Flags().StringVar(&outJSON, "json", "", "output JSON report path (optional)")
	checkCmd.Flags().StringVar(&outMD, "md", "", "output Markdown report path (optional)")
	checkCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}

	input, err := readInput(args[0])
	if err != nil {
		return err
	}

	p := pipeline.NewPipeline(cfg)
	report := p.Assess(*input)

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Assembled %d claims over %d properties\n", report.Entity.ClaimCount(), report.Entity.PropertyCount())
		fmt.Fprintf(os.Stderr, "✓ Calculated readiness index: %d/100\n", report.Score.Index)
		fmt.Fprintln(os.Stderr)
	}

	if err := renderOutputs(p, report, outJSON, outMD); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	if !report.Notability.IsNotable {
		return ErrSilentExit
	}
	return nil
}
