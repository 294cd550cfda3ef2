// Package assemble turns a business record and optional crawl data into a
// Wikibase item document.
package assemble

import (
	"strings"

	"github.com/ppiankov/wikiclaim/internal/model"
	"github.com/ppiankov/wikiclaim/internal/wikibase"
)

// DefaultPlaceholder labels a business that has neither a name nor an ID
const DefaultPlaceholder = "Unnamed business"

// Options tunes assembly
type Options struct {
	Language            string // Label, description and monolingual text language
	InstanceOf          string // QID for P31
	LegacyStreetAddress bool   // Also emit P969
	Placeholder         string // Label of last resort
}

// DefaultOptions returns options for an English business item
func DefaultOptions() Options {
	return Options{
		Language:    wikibase.DefaultLanguage,
		InstanceOf:  "Q4830453",
		Placeholder: DefaultPlaceholder,
	}
}

// OptionsFromConfig converts the assembly config section, filling gaps with defaults
func OptionsFromConfig(cfg model.AssemblyConfig) Options {
	opts := DefaultOptions()
	if lang := strings.TrimSpace(cfg.Language); lang != "" {
		opts.Language = lang
	}
	if wikibase.IsQID(strings.TrimSpace(cfg.InstanceOf)) {
		opts.InstanceOf = strings.TrimSpace(cfg.InstanceOf)
	}
	if p := strings.TrimSpace(cfg.Placeholder); p != "" {
		opts.Placeholder = p
	}
	opts.LegacyStreetAddress = cfg.LegacyStreetAddress
	return opts
}

// Assembler builds entities. It holds no mutable state and is safe for concurrent use.
type Assembler struct {
	opts     Options
	mappings []Mapping
}

// New creates an assembler with the given options
func New(opts Options) *Assembler {
	defaults := DefaultOptions()
	if opts.Language == "" {
		opts.Language = defaults.Language
	}
	if opts.InstanceOf == "" {
		opts.InstanceOf = defaults.InstanceOf
	}
	if opts.Placeholder == "" {
		opts.Placeholder = defaults.Placeholder
	}

	var mappings []Mapping
	for _, m := range propertyTable {
		if m.Enabled == nil || m.Enabled(opts) {
			mappings = append(mappings, m)
		}
	}

	return &Assembler{opts: opts, mappings: mappings}
}

// Language is the language of labels, descriptions and monolingual text
func (a *Assembler) Language() string {
	return a.opts.Language
}

// Assemble builds an entity with default options
func Assemble(record model.BusinessRecord, crawled *model.CrawledData) *wikibase.Entity {
	return New(DefaultOptions()).Assemble(record, crawled)
}

// Assemble builds a fresh entity from the record and optional crawl data.
// It never fails: missing fields drop their property.
func (a *Assembler) Assemble(record model.BusinessRecord, crawled *model.CrawledData) *wikibase.Entity {
	src := Sources{Record: record, Crawled: crawled}
	entity := wikibase.NewEntity()

	entity.SetLabel(a.opts.Language, a.label(src))
	entity.SetDescription(a.opts.Language, a.description(src))

	for _, m := range a.mappings {
		v, ok := m.Derive(src, a.opts)
		if !ok || v.Data == nil {
			continue
		}
		claim, ok := buildClaim(m, v, src, a.opts.Language)
		if !ok {
			continue
		}
		entity.AddClaim(claim)
	}

	return entity
}

// label prefers the crawled name, then the record name, then the record ID
func (a *Assembler) label(src Sources) string {
	if src.Crawled != nil {
		if name := strings.TrimSpace(src.Crawled.Name); name != "" {
			return name
		}
	}
	if name := strings.TrimSpace(src.Record.Name); name != "" {
		return name
	}
	if id := strings.TrimSpace(src.Record.ID); id != "" {
		return id
	}
	return a.opts.Placeholder
}

// description prefers the crawled description over a generated sentence
func (a *Assembler) description(src Sources) string {
	if src.Crawled != nil {
		if desc := strings.TrimSpace(src.Crawled.Description); desc != "" {
			return desc
		}
	}
	return GeneratedDescription(src.Record.Location)
}

// GeneratedDescription returns "Local business in {city}, {state}", dropping
// whichever parts are unknown
func GeneratedDescription(loc model.Location) string {
	var parts []string
	for _, p := range []string{loc.City, loc.State} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "Local business"
	}
	return "Local business in " + strings.Join(parts, ", ")
}
