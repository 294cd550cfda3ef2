package assemble

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ppiankov/wikiclaim/internal/model"
	"github.com/ppiankov/wikiclaim/internal/wikibase"
)

func float(v float64) *float64 { return &v }

func acmeRecord() model.BusinessRecord {
	return model.BusinessRecord{
		ID:   "biz_123",
		Name: "Acme Coffee Roasters",
		URL:  "https://acmecoffee.com",
		Location: model.Location{
			City:      "San Francisco",
			State:     "CA",
			Latitude:  float(37.7749),
			Longitude: float(-122.4194),
		},
	}
}

func acmeCrawl() *model.CrawledData {
	return &model.CrawledData{
		Name:        "Acme Coffee Roasters Inc.",
		Description: "Premium artisanal coffee roaster in the Mission District",
		Phone:       "+1-415-555-0123",
	}
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestAssemble_EndToEnd(t *testing.T) {
	e := Assemble(acmeRecord(), acmeCrawl())

	if got := e.Labels["en"].Value; got != "Acme Coffee Roasters Inc." {
		t.Errorf("label = %q", got)
	}
	if got := e.Descriptions["en"].Value; got != "Premium artisanal coffee roaster in the Mission District" {
		t.Errorf("description = %q", got)
	}

	want := []string{"P31", "P856", "P625", "P1448", "P1329"}
	if diff := cmp.Diff(want, e.Claims.Keys()); diff != "" {
		t.Errorf("claim properties (-want +got):\n%s", diff)
	}

	name := e.Claims.Get("P1448")[0].MainSnak.DataValue.(wikibase.MonolingualText)
	if name.Text != "Acme Coffee Roasters Inc." || name.Language != "en" {
		t.Errorf("unexpected P1448: %#v", name)
	}
	phone := e.Claims.Get("P1329")[0].MainSnak.DataValue.(wikibase.String)
	if phone != "+1-415-555-0123" {
		t.Errorf("unexpected P1329: %q", phone)
	}
	site := e.Claims.Get("P856")[0]
	if site.MainSnak.DataType != wikibase.DataTypeURL || site.MainSnak.DataValue.(wikibase.String) != "https://acmecoffee.com" {
		t.Errorf("unexpected P856: %#v", site.MainSnak)
	}

	for _, c := range e.AllClaims() {
		if c.Type != wikibase.StatementType {
			t.Errorf("%s: type = %q", c.MainSnak.Property, c.Type)
		}
		if len(c.References) != 1 {
			t.Fatalf("%s: expected one reference block, got %d", c.MainSnak.Property, len(c.References))
		}
		urls := c.References[0].Snaks.Get(PropReferenceURL)
		if len(urls) != 1 || urls[0].DataValue.(wikibase.String) != "https://acmecoffee.com" {
			t.Errorf("%s: unexpected P854 %v", c.MainSnak.Property, urls)
		}
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	crawl := acmeCrawl()
	at := time.Date(2024, 5, 17, 13, 45, 0, 0, time.UTC)
	crawl.CrawledAt = &at
	crawl.SourceTitle = "Acme Coffee Roasters | Home"
	crawl.SocialLinks = &model.SocialLinks{Twitter: "https://twitter.com/acmecoffee", Instagram: "https://instagram.com/acme.coffee/"}

	first := mustJSON(t, Assemble(acmeRecord(), crawl))
	for i := 0; i < 20; i++ {
		if got := mustJSON(t, Assemble(acmeRecord(), crawl)); got != first {
			t.Fatalf("assembly %d differs:\n%s\nvs\n%s", i, got, first)
		}
	}
}

func TestAssemble_InstanceOfAlwaysPresent(t *testing.T) {
	inputs := []struct {
		name    string
		record  model.BusinessRecord
		crawled *model.CrawledData
	}{
		{"full", acmeRecord(), acmeCrawl()},
		{"record only", acmeRecord(), nil},
		{"empty record", model.BusinessRecord{}, nil},
		{"empty crawl", model.BusinessRecord{ID: "x"}, &model.CrawledData{}},
	}

	for _, in := range inputs {
		t.Run(in.name, func(t *testing.T) {
			e := Assemble(in.record, in.crawled)
			claims := e.Claims.Get("P31")
			if len(claims) != 1 {
				t.Fatalf("expected one P31 claim, got %d", len(claims))
			}
			id, ok := claims[0].MainSnak.DataValue.(wikibase.EntityID)
			if !ok || id.ID != "Q4830453" || id.EntityType != wikibase.EntityTypeItem || id.NumericID != 4830453 {
				t.Errorf("unexpected P31 value %#v", claims[0].MainSnak.DataValue)
			}

			if len(e.Labels) != 1 || strings.TrimSpace(e.Labels["en"].Value) == "" {
				t.Errorf("expected one non-empty en label, got %v", e.Labels)
			}
			if wikibase.UTF16Len(e.Descriptions["en"].Value) > wikibase.MaxTermLength {
				t.Errorf("description too long")
			}
			if _, err := json.Marshal(e); err != nil {
				t.Errorf("entity does not serialize: %v", err)
			}
		})
	}
}

func TestAssemble_CoordinateGating(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng *float64
		want     bool
	}{
		{"both", float(37.7749), float(-122.4194), true},
		{"zero is a value", float(0), float(0), true},
		{"lat only", float(37.7749), nil, false},
		{"lng only", nil, float(-122.4194), false},
		{"neither", nil, nil, false},
		{"out of range", float(137.0), float(10), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := acmeRecord()
			rec.Location.Latitude = tt.lat
			rec.Location.Longitude = tt.lng

			e := Assemble(rec, nil)
			if got := e.Claims.Has("P625"); got != tt.want {
				t.Fatalf("P625 present = %v, want %v", got, tt.want)
			}
			if !tt.want {
				return
			}
			coord := e.Claims.Get("P625")[0].MainSnak.DataValue.(wikibase.GlobeCoordinate)
			if coord.Precision != 0.0001 {
				t.Errorf("precision = %v", coord.Precision)
			}
			if coord.Globe != wikibase.EarthGlobe {
				t.Errorf("globe = %q", coord.Globe)
			}
			if coord.Latitude != *tt.lat || coord.Longitude != *tt.lng {
				t.Errorf("coordinates = %v,%v", coord.Latitude, coord.Longitude)
			}
		})
	}
}

func TestAssemble_LabelFallback(t *testing.T) {
	tests := []struct {
		name    string
		record  model.BusinessRecord
		crawled *model.CrawledData
		want    string
	}{
		{"crawled name wins", model.BusinessRecord{ID: "b1", Name: "Record"}, &model.CrawledData{Name: "Crawled"}, "Crawled"},
		{"blank crawled name", model.BusinessRecord{ID: "b1", Name: "Record"}, &model.CrawledData{Name: "   "}, "Record"},
		{"no crawl", model.BusinessRecord{ID: "b1", Name: " Record "}, nil, "Record"},
		{"identifier", model.BusinessRecord{ID: "b1", Name: ""}, &model.CrawledData{}, "b1"},
		{"placeholder", model.BusinessRecord{}, nil, DefaultPlaceholder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Assemble(tt.record, tt.crawled)
			if got := e.Labels["en"].Value; got != tt.want {
				t.Errorf("label = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAssemble_DescriptionFallbackAndTruncation(t *testing.T) {
	rec := acmeRecord()
	if got := Assemble(rec, nil).Descriptions["en"].Value; got != "Local business in San Francisco, CA" {
		t.Errorf("generated description = %q", got)
	}

	rec.Location.State = ""
	if got := Assemble(rec, &model.CrawledData{Description: "  "}).Descriptions["en"].Value; got != "Local business in San Francisco" {
		t.Errorf("generated description = %q", got)
	}

	long := strings.Repeat("x", 300)
	got := Assemble(rec, &model.CrawledData{Description: long}).Descriptions["en"].Value
	if wikibase.UTF16Len(got) != 250 || got != long[:250] {
		t.Errorf("expected a 250-unit prefix, got %d units", wikibase.UTF16Len(got))
	}

	if got := GeneratedDescription(model.Location{}); got != "Local business" {
		t.Errorf("GeneratedDescription(empty) = %q", got)
	}
}

func TestAssemble_FieldPrecedence(t *testing.T) {
	rec := acmeRecord()
	rec.Location.Address = "1 Record St"

	e := Assemble(rec, &model.CrawledData{Address: "2 Crawl Ave"})
	addr := e.Claims.Get("P6375")[0].MainSnak.DataValue.(wikibase.MonolingualText)
	if addr.Text != "2 Crawl Ave" {
		t.Errorf("crawl address should win, got %q", addr.Text)
	}

	e = Assemble(rec, &model.CrawledData{})
	addr = e.Claims.Get("P6375")[0].MainSnak.DataValue.(wikibase.MonolingualText)
	if addr.Text != "1 Record St" {
		t.Errorf("record address should be the fallback, got %q", addr.Text)
	}
	if e.Claims.Has("P969") {
		t.Error("P969 must be off by default")
	}

	legacy := New(Options{LegacyStreetAddress: true}).Assemble(rec, nil)
	if !legacy.Claims.Has("P969") {
		t.Error("expected P969 when legacy street address is enabled")
	}

	rec.Location.Address = ""
	if Assemble(rec, nil).Claims.Has("P6375") {
		t.Error("P6375 must be omitted when no address is known")
	}
}

func TestAssemble_CrawlOnlyProperties(t *testing.T) {
	crawl := &model.CrawledData{
		Email:       "hello@acmecoffee.com",
		FoundedDate: "2015-06",
		BusinessDetails: &model.BusinessDetails{
			EmployeeCount: "11-50",
			Industry:      "coffee roasting",
			IndustryQID:   "Q1615848",
			LegalForm:     "Q149789",
		},
		SocialLinks: &model.SocialLinks{
			Twitter:   "https://x.com/acmecoffee",
			Facebook:  "https://www.facebook.com/acme.coffee.sf/",
			Instagram: "@acmecoffee",
			LinkedIn:  "https://www.linkedin.com/company/acme-coffee-roasters",
		},
	}

	e := Assemble(acmeRecord(), crawl)

	checks := map[string]wikibase.DataValue{
		"P968":  wikibase.String("mailto:hello@acmecoffee.com"),
		"P571":  wikibase.Time{Time: "+2015-06-00T00:00:00Z", Precision: wikibase.PrecisionMonth, CalendarModel: wikibase.GregorianCalendar},
		"P1128": wikibase.Quantity{Amount: "+11", Unit: "1", LowerBound: "+11", UpperBound: "+50"},
		"P452":  wikibase.ItemID("Q1615848"),
		"P1454": wikibase.ItemID("Q149789"),
		"P2002": wikibase.String("acmecoffee"),
		"P2013": wikibase.String("acme.coffee.sf"),
		"P2003": wikibase.String("acmecoffee"),
		"P4264": wikibase.String("acme-coffee-roasters"),
	}
	for pid, want := range checks {
		claims := e.Claims.Get(pid)
		if len(claims) != 1 {
			t.Errorf("%s: expected one claim, got %d", pid, len(claims))
			continue
		}
		if diff := cmp.Diff(want, claims[0].MainSnak.DataValue); diff != "" {
			t.Errorf("%s (-want +got):\n%s", pid, diff)
		}
	}

	if got := e.Claims.Get("P2002")[0].MainSnak.DataType; got != wikibase.DataTypeExternalID {
		t.Errorf("P2002 datatype = %q", got)
	}
}

func TestAssemble_OmitsUnusableValues(t *testing.T) {
	crawl := &model.CrawledData{
		Email:       "not-an-email",
		FoundedDate: "sometime in the nineties",
		BusinessDetails: &model.BusinessDetails{
			EmployeeCount: "a few",
			Industry:      "Coffee",
		},
		SocialLinks: &model.SocialLinks{
			Twitter:  "https://twitter.com/share",
			LinkedIn: "https://linkedin.com/in/some-person",
		},
	}
	rec := acmeRecord()
	rec.URL = "   "

	e := Assemble(rec, crawl)
	for _, pid := range []string{"P856", "P968", "P571", "P1128", "P452", "P2002", "P4264", "P1329"} {
		if e.Claims.Has(pid) {
			t.Errorf("%s should be omitted", pid)
		}
	}
}

func TestAssemble_References(t *testing.T) {
	at := time.Date(2024, 5, 17, 23, 59, 0, 0, time.FixedZone("PDT", -7*3600))
	crawl := &model.CrawledData{
		SourceURL:   "https://acmecoffee.com/about",
		SourceTitle: "About Acme",
		CrawledAt:   &at,
		Phone:       "+1-415-555-0123",
	}

	e := Assemble(acmeRecord(), crawl)

	phoneRef := e.Claims.Get("P1329")[0].References[0]
	if diff := cmp.Diff([]string{"P854", "P1476", "P813"}, phoneRef.SnaksOrder); diff != "" {
		t.Errorf("crawl reference snaks-order (-want +got):\n%s", diff)
	}
	if u := phoneRef.Snaks.Get("P854")[0].DataValue.(wikibase.String); u != "https://acmecoffee.com/about" {
		t.Errorf("crawl claim should cite the crawled page, got %q", u)
	}
	retrieved := phoneRef.Snaks.Get("P813")[0].DataValue.(wikibase.Time)
	if retrieved.Time != "+2024-05-18T00:00:00Z" || retrieved.Precision != wikibase.PrecisionDay {
		t.Errorf("unexpected retrieval date %#v", retrieved)
	}

	siteRef := e.Claims.Get("P856")[0].References[0]
	if diff := cmp.Diff([]string{"P854"}, siteRef.SnaksOrder); diff != "" {
		t.Errorf("record reference snaks-order (-want +got):\n%s", diff)
	}

	noURL := acmeRecord()
	noURL.URL = ""
	bare := Assemble(noURL, nil)
	for _, c := range bare.AllClaims() {
		if len(c.References) != 0 {
			t.Errorf("%s: expected no references without any URL", c.MainSnak.Property)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(model.AssemblyConfig{Language: "de", InstanceOf: "not-a-qid", LegacyStreetAddress: true})
	if opts.Language != "de" || opts.InstanceOf != "Q4830453" || !opts.LegacyStreetAddress || opts.Placeholder != DefaultPlaceholder {
		t.Errorf("unexpected options %+v", opts)
	}

	e := New(OptionsFromConfig(model.AssemblyConfig{InstanceOf: "Q6881511"})).Assemble(acmeRecord(), nil)
	if id := e.Claims.Get("P31")[0].MainSnak.DataValue.(wikibase.EntityID); id.ID != "Q6881511" {
		t.Errorf("P31 = %s", id.ID)
	}
}

func TestProperties_TableIsWellFormed(t *testing.T) {
	seen := make(map[string]bool)
	for _, m := range Properties() {
		if !wikibase.IsPID(m.Property) {
			t.Errorf("invalid PID %q", m.Property)
		}
		if seen[m.Property] {
			t.Errorf("duplicate mapping for %s", m.Property)
		}
		seen[m.Property] = true
		if m.Label == "" || m.DataType == "" || m.Derive == nil {
			t.Errorf("%s: incomplete mapping", m.Property)
		}
	}
	if Properties()[0].Property != "P31" {
		t.Error("P31 must be evaluated first")
	}
}
