package assemble

import (
	"strings"

	"github.com/ppiankov/wikiclaim/internal/model"
	"github.com/ppiankov/wikiclaim/internal/wikibase"
)

// Origin records which input supplied a mapped value
type Origin int

const (
	OriginLiteral Origin = iota // Fixed value, no source field
	OriginRecord                // BusinessRecord field
	OriginCrawl                 // CrawledData field
)

// Sources is the input pair a mapping reads from. Crawled may be nil.
type Sources struct {
	Record  model.BusinessRecord
	Crawled *model.CrawledData
}

// Value is the output of a mapping
type Value struct {
	Data   wikibase.DataValue
	Origin Origin
}

// Mapping derives at most one claim for Property from the sources
type Mapping struct {
	Property string
	Label    string
	DataType string
	Derive   func(src Sources, opts Options) (Value, bool)
	Enabled  func(opts Options) bool // nil means always
}

// propertyTable is evaluated top to bottom; claim order follows it
var propertyTable = []Mapping{
	{
		Property: "P31", Label: "instance of", DataType: wikibase.DataTypeItem,
		Derive: func(_ Sources, opts Options) (Value, bool) {
			id, ok := itemID(opts.InstanceOf)
			return Value{Data: id, Origin: OriginLiteral}, ok
		},
	},
	{
		Property: "P856", Label: "official website", DataType: wikibase.DataTypeURL,
		Derive: func(src Sources, _ Options) (Value, bool) {
			return stringValue(normalizeURL(src.Record.URL), OriginRecord)
		},
	},
	{
		Property: "P625", Label: "coordinate location", DataType: wikibase.DataTypeGlobeCoordinate,
		Derive: func(src Sources, _ Options) (Value, bool) {
			loc := src.Record.Location
			if !loc.HasCoordinates() || !validCoordinate(*loc.Latitude, *loc.Longitude) {
				return Value{}, false
			}
			return Value{
				Data: wikibase.GlobeCoordinate{
					Latitude:  *loc.Latitude,
					Longitude: *loc.Longitude,
					Precision: CoordinatePrecision,
					Globe:     wikibase.EarthGlobe,
				},
				Origin: OriginRecord,
			}, true
		},
	},
	{
		Property: "P1448", Label: "official name", DataType: wikibase.DataTypeMonolingualText,
		Derive: func(src Sources, opts Options) (Value, bool) {
			name, origin := pick(crawled(src, func(c *model.CrawledData) string { return c.Name }), src.Record.Name)
			return textValue(name, opts.Language, origin)
		},
	},
	{
		Property: "P1329", Label: "phone number", DataType: wikibase.DataTypeString,
		Derive: func(src Sources, _ Options) (Value, bool) {
			return stringValue(crawled(src, func(c *model.CrawledData) string { return c.Phone }), OriginCrawl)
		},
	},
	{
		Property: "P968", Label: "email address", DataType: wikibase.DataTypeURL,
		Derive: func(src Sources, _ Options) (Value, bool) {
			return stringValue(mailtoURI(crawled(src, func(c *model.CrawledData) string { return c.Email })), OriginCrawl)
		},
	},
	{
		Property: "P6375", Label: "street address", DataType: wikibase.DataTypeMonolingualText,
		Derive: func(src Sources, opts Options) (Value, bool) {
			addr, origin := streetAddress(src)
			return textValue(addr, opts.Language, origin)
		},
	},
	{
		Property: "P969", Label: "located at street address", DataType: wikibase.DataTypeString,
		Derive: func(src Sources, _ Options) (Value, bool) {
			addr, origin := streetAddress(src)
			return stringValue(addr, origin)
		},
		Enabled: func(opts Options) bool { return opts.LegacyStreetAddress },
	},
	{
		Property: "P571", Label: "inception", DataType: wikibase.DataTypeTime,
		Derive: func(src Sources, _ Options) (Value, bool) {
			t, ok := parseInception(crawled(src, func(c *model.CrawledData) string { return c.FoundedDate }))
			return Value{Data: t, Origin: OriginCrawl}, ok
		},
	},
	{
		Property: "P1128", Label: "employees", DataType: wikibase.DataTypeQuantity,
		Derive: func(src Sources, _ Options) (Value, bool) {
			q, ok := parseEmployeeCount(details(src, func(d *model.BusinessDetails) string { return string(d.EmployeeCount) }))
			return Value{Data: q, Origin: OriginCrawl}, ok
		},
	},
	{
		Property: "P452", Label: "industry", DataType: wikibase.DataTypeItem,
		Derive: func(src Sources, _ Options) (Value, bool) {
			id, ok := itemID(
				details(src, func(d *model.BusinessDetails) string { return d.IndustryQID }),
				details(src, func(d *model.BusinessDetails) string { return d.Industry }),
			)
			return Value{Data: id, Origin: OriginCrawl}, ok
		},
	},
	{
		Property: "P1454", Label: "legal form", DataType: wikibase.DataTypeItem,
		Derive: func(src Sources, _ Options) (Value, bool) {
			id, ok := itemID(
				details(src, func(d *model.BusinessDetails) string { return d.LegalFormQID }),
				details(src, func(d *model.BusinessDetails) string { return d.LegalForm }),
			)
			return Value{Data: id, Origin: OriginCrawl}, ok
		},
	},
	socialMapping("P2002", "X username", twitterProfile, func(l *model.SocialLinks) string { return l.Twitter }),
	socialMapping("P2013", "Facebook username", facebookProfile, func(l *model.SocialLinks) string { return l.Facebook }),
	socialMapping("P2003", "Instagram username", instagramProfile, func(l *model.SocialLinks) string { return l.Instagram }),
	socialMapping("P4264", "LinkedIn company or organization ID", linkedinProfile, func(l *model.SocialLinks) string { return l.LinkedIn }),
}

// CoordinatePrecision is the fixed precision of P625 values, in degrees
const CoordinatePrecision = 0.0001

// Properties returns the mapping table in evaluation order
func Properties() []Mapping {
	out := make([]Mapping, len(propertyTable))
	copy(out, propertyTable)
	return out
}

func socialMapping(pid, label string, p profile, field func(*model.SocialLinks) string) Mapping {
	return Mapping{
		Property: pid, Label: label, DataType: wikibase.DataTypeExternalID,
		Derive: func(src Sources, _ Options) (Value, bool) {
			if src.Crawled == nil || src.Crawled.SocialLinks == nil {
				return Value{}, false
			}
			return stringValue(p.handle(field(src.Crawled.SocialLinks)), OriginCrawl)
		},
	}
}

// crawled reads a trimmed CrawledData field, "" when there is no crawl
func crawled(src Sources, field func(*model.CrawledData) string) string {
	if src.Crawled == nil {
		return ""
	}
	return strings.TrimSpace(field(src.Crawled))
}

func details(src Sources, field func(*model.BusinessDetails) string) string {
	if src.Crawled == nil || src.Crawled.BusinessDetails == nil {
		return ""
	}
	return strings.TrimSpace(field(src.Crawled.BusinessDetails))
}

// pick applies the crawl-over-record precedence
func pick(fromCrawl, fromRecord string) (string, Origin) {
	if v := strings.TrimSpace(fromCrawl); v != "" {
		return v, OriginCrawl
	}
	return strings.TrimSpace(fromRecord), OriginRecord
}

func streetAddress(src Sources) (string, Origin) {
	return pick(crawled(src, func(c *model.CrawledData) string { return c.Address }), src.Record.Location.Address)
}

func stringValue(s string, origin Origin) (Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, false
	}
	return Value{Data: wikibase.String(s), Origin: origin}, true
}

func textValue(s, lang string, origin Origin) (Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, false
	}
	return Value{Data: wikibase.MonolingualText{Text: s, Language: lang}, Origin: origin}, true
}
