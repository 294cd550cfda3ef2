package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ppiankov/wikiclaim/internal/cache"
	"github.com/ppiankov/wikiclaim/internal/metrics"
	"github.com/ppiankov/wikiclaim/internal/model"
	"github.com/ppiankov/wikiclaim/internal/pipeline"
	"github.com/ppiankov/wikiclaim/internal/publish"
	"github.com/ppiankov/wikiclaim/internal/store"
	"github.com/ppiankov/wikiclaim/internal/worker"
)

// ErrSilentExit asks for a non-zero exit whose cause was already printed
var ErrSilentExit = errors.New("entity failed the notability gate")

// readInput decodes one input document from path, or stdin for "-"
func readInput(path string) (*model.Input, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	return model.DecodeInput(r)
}

// resolveTarget applies the --target flag over the configured target
func resolveTarget(cfg *model.Config, flag string) (model.Target, error) {
	if flag == "" {
		flag = cfg.Wikibase.Target
	}
	return model.ParseTarget(flag)
}

// newPublisher logs in when credentials are configured and wires the
// client, token cache, store and limiter into a Publisher
func newPublisher(ctx context.Context, cfg *model.Config, p *pipeline.Pipeline, target model.Target, st *store.Store, m *metrics.Metrics) (*pipeline.Publisher, error) {
	opts := publish.OptionsFromConfig(cfg.Wikibase, target)
	opts.Logger = slog.Default()

	client, err := publish.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	if cfg.Auth.Username != "" {
		if verbose {
			fmt.Fprintf(os.Stderr, "⚙️  Logging in to %s as %s...\n", client.APIURL(), cfg.Auth.Username)
		}
		if err := client.Login(ctx, cfg.Auth.Username, cfg.Auth.Password); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
	} else {
		fmt.Fprintf(os.Stderr, "Warning: no bot credentials configured (WIKICLAIM_BOT_USER); editing anonymously\n")
	}

	ttl := cfg.Wikibase.TokenCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	tokens := publish.NewTokenSource(client, cache.NewMemoryCache(ttl, 10*time.Minute), ttl)

	return pipeline.NewPublisher(p, target, pipeline.PublisherDeps{
		API:     client,
		Tokens:  tokens,
		Store:   st,
		Limiter: worker.NewPublishLimiter(cfg.Publish),
		Metrics: m,
		Logger:  slog.Default(),
	}), nil
}

func openStore(cfg *model.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	return st, nil
}

// renderOutputs writes the JSON and Markdown reports when paths are given
func renderOutputs(p *pipeline.Pipeline, report *model.Report, jsonPath, mdPath string) error {
	r := p.Renderer()

	if jsonPath != "" {
		if err := r.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := r.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	r.RenderSummary(os.Stderr, report)
	return nil
}
