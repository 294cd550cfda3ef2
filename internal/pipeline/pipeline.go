// Package pipeline ties assembly, the notability gate, scoring and publishing
// together and renders the resulting reports.
package pipeline

import (
	"log/slog"
	"time"

	"github.com/ppiankov/wikiclaim/internal/assemble"
	"github.com/ppiankov/wikiclaim/internal/metrics"
	"github.com/ppiankov/wikiclaim/internal/model"
	"github.com/ppiankov/wikiclaim/internal/score"
	"github.com/ppiankov/wikiclaim/internal/validate"
)

// Pipeline assesses business inputs. It is safe for concurrent use.
type Pipeline struct {
	assembler *assemble.Assembler
	authority *validate.AuthorityClassifier
	scorer    *score.Scorer
	renderer  *Renderer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	config    *model.Config
	now       func() time.Time
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithMetrics records assessments in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the diagnostic logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, opts ...Option) *Pipeline {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}

	authority := validate.NewAuthorityClassifier(&cfg.Authority)
	p := &Pipeline{
		assembler: assemble.New(assemble.OptionsFromConfig(cfg.Assembly)),
		authority: authority,
		scorer:    score.NewScorer(authority),
		renderer:  NewRenderer(cfg.Output.IncludeFooter),
		logger:    slog.Default(),
		config:    cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Renderer returns the report renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// Assess assembles the entity, runs the notability gate and scores the result.
// It performs no I/O.
func (p *Pipeline) Assess(input model.Input) *model.Report {
	entity := p.assembler.Assemble(input.Business, input.Crawled)
	notability := validate.Validate(entity, input.Notability)
	readiness := p.scorer.Calculate(entity, input.Business.URL, input.Notability)

	p.metrics.ObserveAssessment(notability.IsNotable, notability.Reasons)

	subject := entity.Labels[p.assembler.Language()].Value

	p.logger.Debug("assessed business",
		"business", input.Business.ID,
		"notable", notability.IsNotable,
		"properties", entity.PropertyCount(),
		"index", readiness.Index)

	return &model.Report{
		BusinessID: input.Business.ID,
		Subject:    subject,
		SourceURL:  input.Business.URL,
		AssessedAt: p.now().UTC(),
		Entity:     entity,
		Notability: notability,
		External:   input.Notability,
		Score:      readiness,
	}
}
