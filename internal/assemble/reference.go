package assemble

import (
	"strings"

	"github.com/ppiankov/wikiclaim/internal/wikibase"
)

// Reference properties
const (
	PropReferenceURL  = "P854"
	PropTitle         = "P1476"
	PropRetrievedDate = "P813"
)

// referenceFor builds the provenance block for a value of the given origin.
// Crawl-derived values cite the crawled page, everything else cites the
// business website. Title and retrieval date are added when the crawl
// describes the cited page. Returns nil when there is no URL to cite.
func referenceFor(origin Origin, src Sources, lang string) *wikibase.Reference {
	recordURL := normalizeURL(src.Record.URL)

	crawlURL := ""
	if src.Crawled != nil {
		crawlURL = normalizeURL(src.Crawled.SourceURL)
		if crawlURL == "" {
			crawlURL = recordURL
		}
	}

	cited := recordURL
	if origin == OriginCrawl && crawlURL != "" {
		cited = crawlURL
	}
	if cited == "" {
		return nil
	}

	var ref wikibase.Reference
	ref.Add(wikibase.ValueSnak(PropReferenceURL, wikibase.DataTypeURL, wikibase.String(cited)))

	if src.Crawled != nil && cited == crawlURL {
		if title := strings.TrimSpace(src.Crawled.SourceTitle); title != "" {
			ref.Add(wikibase.ValueSnak(PropTitle, wikibase.DataTypeMonolingualText, wikibase.MonolingualText{
				Text:     title,
				Language: lang,
			}))
		}
		if src.Crawled.CrawledAt != nil && !src.Crawled.CrawledAt.IsZero() {
			ref.Add(wikibase.ValueSnak(PropRetrievedDate, wikibase.DataTypeTime, dayTime(*src.Crawled.CrawledAt)))
		}
	}

	return &ref
}

// buildClaim wraps a mapped value into a statement with its reference
func buildClaim(m Mapping, v Value, src Sources, lang string) (wikibase.Claim, bool) {
	snak := wikibase.ValueSnak(m.Property, m.DataType, v.Data)
	if err := snak.Validate(); err != nil {
		return wikibase.Claim{}, false
	}

	claim := wikibase.NewClaim(snak)
	claim.Rank = wikibase.RankNormal
	if ref := referenceFor(v.Origin, src, lang); ref != nil {
		claim.References = []wikibase.Reference{*ref}
	}
	return claim, true
}
