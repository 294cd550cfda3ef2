package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/wikiclaim/internal/model"
	"github.com/ppiankov/wikiclaim/internal/pipeline"
	"github.com/ppiankov/wikiclaim/internal/store"
)

var (
	targetName     string
	publishTimeout time.Duration
)

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish <input.json>",
	Short: "Create the Wikibase item for one business",
	Long: `Publish assembles and checks the item, then creates it with
wbeditentity when it passes the notability gate. The QID is stored
locally so the same business is never created twice on a target.

Credentials are read from WIKICLAIM_BOT_USER and WIKICLAIM_BOT_PASSWORD
(a .env file in the working directory is honoured) or from the auth
section of the config file.

Example:
  wikiclaim publish acme.json
  wikiclaim publish acme.json --target production --json report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().StringVar(&targetName, "target", "", "wikibase target: test or production (default from config)")
	publishCmd.Flags().DurationVar(&publishTimeout, "timeout", 2*time.Minute, "overall publish timeout including retries")
	publishCmd.Flags().StringVar(&outJSON, "json", "", "output JSON report path (optional)")
	publishCmd.Flags().StringVar(&outMD, "md", "", "output Markdown report path (optional)")
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	target, err := resolveTarget(cfg, targetName)
	if err != nil {
		return err
	}

	input, err := readInput(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	p := pipeline.NewPipeline(cfg)

	// Refuse before logging in when the gate fails
	if report := p.Assess(*input); !report.Notability.IsNotable {
		_ = renderOutputs(p, report, outJSON, outMD)
		return pipeline.ErrNotPublishable
	}

	if target == model.TargetProduction {
		fmt.Fprintf(os.Stderr, "Warning: publishing to production (%s)\n", cfg.Wikibase.APIURL(target))
	}

	publisher, err := newPublisher(ctx, cfg, p, target, st, nil)
	if err != nil {
		return err
	}

	report, pubErr := publisher.Publish(ctx, *input)
	if report != nil {
		if err := renderOutputs(p, report, outJSON, outMD); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
	}

	switch {
	case pubErr == nil:
		fmt.Fprintf(os.Stderr, "✓ Created %s on %s\n", report.Publish.QID, target)
		fmt.Println(report.Publish.QID)
		return nil
	case errors.Is(pubErr, store.ErrAlreadyPublished):
		qid := ""
		if report != nil && report.Publish != nil {
			qid = report.Publish.QID
		}
		fmt.Fprintf(os.Stderr, "✓ Already published on %s as %s\n", target, qid)
		return nil
	default:
		return pubErr
	}
}
