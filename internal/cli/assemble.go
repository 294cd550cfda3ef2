package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/wikiclaim/internal/pipeline"
)

var assembleOut string

// assembleCmd represents the assemble command
var assembleCmd = &cobra.Command{
	Use:   "assemble <input.json>",
	Short: "Build the Wikibase item document for one business",
	Long: `Assemble maps a business record and its optional crawl data onto
Wikibase properties and prints the item document exactly as it would be
sent to wbeditentity. Nothing is validated or published.

Use "-" to read the input from stdin.

Example:
  wikiclaim assemble acme.json
  wikiclaim assemble acme.json --out acme.entity.json`,
	Args: cobra.ExactArgs(1),
	RunE: runAssemble,
}

func init() {
	rootCmd.AddCommand(assembleCmd)

	assembleCmd.Flags().StringVarP(&assembleOut, "out", "o", "", "write the entity to a file instead of stdout")
}

func runAssemble(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	input, err := readInput(args[0])
	if err != nil {
		return err
	}

	report := pipeline.NewPipeline(cfg).Assess(*input)

	out := os.Stdout
	if assembleOut != "" {
		f, createErr := os.Create(assembleOut)
		if createErr != nil {
			return fmt.Errorf("create output: %w", createErr)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close output: %w", closeErr)
			}
		}()
		out = f
	}

	if err := pipeline.RenderEntity(out, report.Entity); err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Assembled %d claims over %d properties\n", report.Entity.ClaimCount(), report.Entity.PropertyCount())
	}
	return nil
}
