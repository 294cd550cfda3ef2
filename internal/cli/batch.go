package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/wikiclaim/internal/metrics"
	"github.com/ppiankov/wikiclaim/internal/model"
	"github.com/ppiankov/wikiclaim/internal/pipeline"
	"github.com/ppiankov/wikiclaim/internal/store"
	"github.com/ppiankov/wikiclaim/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	batchPublish bool
	metricsFile  string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <inputs.jsonl>",
	Short: "Check many businesses from a JSON-lines file in parallel",
	Long: `Batch processes one input document per line:
- Assemble and check every business concurrently
- Write a JSON and Markdown report per business
- Optionally publish the businesses that pass, one at a time through
  the rate limiter

Blank lines and lines starting with # are ignored. A business ID that
appears more than once is processed once.

Example:
  wikiclaim batch businesses.jsonl
  wikiclaim batch businesses.jsonl --concurrency 8 --output-dir ./reports
  wikiclaim batch businesses.jsonl --publish --target test --metrics-file wikiclaim.prom`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./wikiclaim-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	// Publish flags
	batchCmd.Flags().BoolVar(&batchPublish, "publish", false, "publish businesses that pass the notability gate")
	batchCmd.Flags().StringVar(&targetName, "target", "", "wikibase target: test or production (default from config)")
	batchCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format (optional)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") || cfg.Concurrency.Workers <= 0 {
		cfg.Concurrency.Workers = concurrency
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}

	target, err := resolveTarget(cfg, targetName)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Wikiclaim Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if batchPublish {
		fmt.Fprintf(os.Stderr, "  Publish to:   %s (%s)\n", target, cfg.Wikibase.APIURL(target))
	}
	fmt.Fprintf(os.Stderr, "\n")

	m := metrics.New()
	p := pipeline.NewPipeline(cfg, pipeline.WithMetrics(m))

	fmt.Fprintf(os.Stderr, "⚙️  Reading inputs from file...\n")
	lines, err := worker.ReadInputsFromFile(file)
	if err != nil {
		return fmt.Errorf("read inputs: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d inputs\n", len(lines))
	fmt.Fprintf(os.Stderr, "⚙️  Checking with %d workers...\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers)
	if cfg.Output.Verbose {
		processor.OnProgress(func(done, total int, r *worker.AssessResult) {
			mark := "✓"
			if r.Error != nil || (r.Report != nil && !r.Report.Notability.IsNotable) {
				mark = "✗"
			}
			fmt.Fprintf(os.Stderr, "  [%d/%d] %s line %d %s\n", done, total, mark, r.Line, r.BusinessID)
		})
	}
	results := processor.ProcessInputs(ctx, lines)

	var publisher *pipeline.Publisher
	if batchPublish {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		publisher, err = newPublisher(ctx, cfg, p, target, st, m)
		if err != nil {
			return err
		}
	}

	var (
		reports   []*model.Report
		failed    int
		rejected  int
		published int
	)

	for _, result := range results {
		if result.Error != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ line %d: %v\n", result.Line, result.Error)
			continue
		}

		report := result.Report
		if !report.Notability.IsNotable {
			rejected++
		} else if publisher != nil {
			input := lines[result.Index].Input
			published += publishOne(ctx, publisher, *input, &report)
		}

		reports = append(reports, report)
		p.Renderer().RenderSummary(os.Stderr, report)
	}

	if err := p.Renderer().RenderBatch(ctx, reports, outputDir, cfg.Concurrency.Workers); err != nil {
		return fmt.Errorf("render reports: %w", err)
	}

	if metricsFile != "" {
		if err := m.WriteToTextfile(metricsFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		} else if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote metrics: %s\n", metricsFile)
		}
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:      %d inputs\n", len(results))
	fmt.Fprintf(os.Stderr, "  Notable:    %d\n", len(reports)-rejected)
	fmt.Fprintf(os.Stderr, "  Rejected:   %d\n", rejected)
	fmt.Fprintf(os.Stderr, "  Failures:   %d\n", failed)
	if batchPublish {
		fmt.Fprintf(os.Stderr, "  Published:  %d\n", published)
	}
	fmt.Fprintf(os.Stderr, "  Output:     %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// publishOne publishes one notable input from its batch report and swaps in
// the report carrying the outcome. It returns 1 when a new item was created.
func publishOne(ctx context.Context, publisher *pipeline.Publisher, input model.Input, report **model.Report) int {
	if ctx.Err() != nil {
		return 0
	}

	updated, err := publisher.PublishReport(ctx, input, *report)
	if updated != nil {
		*report = updated
	}

	switch {
	case err == nil:
		fmt.Fprintf(os.Stderr, "✓ %s: created %s\n", input.Business.ID, updated.Publish.QID)
		return 1
	case errors.Is(err, store.ErrAlreadyPublished):
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ %s: already published\n", input.Business.ID)
		}
	default:
		fmt.Fprintf(os.Stderr, "✗ %s: %v\n", input.Business.ID, err)
	}
	return 0
}
