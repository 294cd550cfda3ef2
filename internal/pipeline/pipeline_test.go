package pipeline

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ppiankov/wikiclaim/internal/metrics"
	"github.com/ppiankov/wikiclaim/internal/model"
	"github.com/ppiankov/wikiclaim/internal/validate"
)

func float(v float64) *float64 { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func acmeInput() model.Input {
	return model.Input{
		Business: model.BusinessRecord{
			ID:   "biz_123",
			Name: "Acme Coffee Roasters",
			URL:  "https://acmecoffee.com",
			Location: model.Location{
				City:      "San Francisco",
				State:     "CA",
				Latitude:  float(37.7749),
				Longitude: float(-122.4194),
			},
		},
		Crawled: &model.CrawledData{
			Name:        "Acme Coffee Roasters Inc.",
			Description: "Premium artisanal coffee roaster in the Mission District",
			Phone:       "+1-415-555-0123",
		},
	}
}

func mustMarshal(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

// unreferencedInput has no website, so no claim can carry a reference
func unreferencedInput() model.Input {
	in := acmeInput()
	in.Business.URL = ""
	return in
}

func TestPipeline_AssessNotable(t *testing.T) {
	p := NewPipeline(model.DefaultConfig(), WithLogger(discardLogger()))

	report := p.Assess(acmeInput())

	if report.BusinessID != "biz_123" {
		t.Errorf("BusinessID = %q", report.BusinessID)
	}
	if report.Subject != "Acme Coffee Roasters Inc." {
		t.Errorf("Subject = %q", report.Subject)
	}
	if report.SourceURL != "https://acmecoffee.com" {
		t.Errorf("SourceURL = %q", report.SourceURL)
	}
	if report.AssessedAt.IsZero() {
		t.Error("expected AssessedAt to be set")
	}
	if !report.Notability.IsNotable {
		t.Errorf("expected notable, got reasons %v", report.Notability.Reasons)
	}
	if len(report.Notability.Reasons) != 0 {
		t.Errorf("expected no reasons, got %v", report.Notability.Reasons)
	}
	if report.Entity == nil || report.Entity.PropertyCount() < 5 {
		t.Fatalf("expected an entity with at least 5 properties")
	}
	if report.Score.Index <= 0 || report.Score.Index > 100 {
		t.Errorf("score index out of range: %d", report.Score.Index)
	}
	if report.Publish != nil {
		t.Error("assessment must not carry a publish outcome")
	}
}

func TestPipeline_AssessRejected(t *testing.T) {
	p := NewPipeline(model.DefaultConfig(), WithLogger(discardLogger()))

	report := p.Assess(unreferencedInput())

	if report.Notability.IsNotable {
		t.Fatal("expected entity without references to be rejected")
	}
	if diff := cmp.Diff([]string{validate.ReasonNoReferences}, report.Notability.Reasons); diff != "" {
		t.Errorf("reasons mismatch (-want +got):\n%s", diff)
	}
}

func TestPipeline_AssessExternalGate(t *testing.T) {
	p := NewPipeline(model.DefaultConfig(), WithLogger(discardLogger()))

	in := acmeInput()
	in.Notability = &model.NotabilityAssessment{IsNotable: false, Confidence: 0.8}

	report := p.Assess(in)
	if report.Notability.IsNotable {
		t.Fatal("expected external rejection to fail the gate")
	}
	if diff := cmp.Diff([]string{validate.ReasonExternalRejected}, report.Notability.Reasons); diff != "" {
		t.Errorf("reasons mismatch (-want +got):\n%s", diff)
	}
	if report.External != in.Notability {
		t.Error("expected external assessment to be carried into the report")
	}
}

func TestPipeline_AssessIsRepeatable(t *testing.T) {
	p := NewPipeline(model.DefaultConfig(), WithLogger(discardLogger()))

	a := p.Assess(acmeInput())
	b := p.Assess(acmeInput())

	if diff := cmp.Diff(a.Notability, b.Notability); diff != "" {
		t.Errorf("notability differs between runs:\n%s", diff)
	}
	if diff := cmp.Diff(a.Score, b.Score); diff != "" {
		t.Errorf("score differs between runs:\n%s", diff)
	}
	if diff := cmp.Diff(mustMarshal(t, a.Entity), mustMarshal(t, b.Entity)); diff != "" {
		t.Errorf("entity differs between runs:\n%s", diff)
	}
}

func TestPipeline_AssessRecordsMetrics(t *testing.T) {
	m := metrics.New()
	p := NewPipeline(model.DefaultConfig(), WithMetrics(m), WithLogger(discardLogger()))

	p.Assess(acmeInput())
	p.Assess(unreferencedInput())

	n, err := testutil.GatherAndCount(m.Registry(), "wikiclaim_assessments_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 2 {
		t.Errorf("expected notable and rejected series, got %d", n)
	}

	n, err = testutil.GatherAndCount(m.Registry(), "wikiclaim_rejections_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Errorf("expected one rejection series, got %d", n)
	}
}

func TestPipeline_AssemblyConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Assembly.Language = "de"

	report := NewPipeline(cfg, WithLogger(discardLogger())).Assess(acmeInput())

	if _, ok := report.Entity.Labels["de"]; !ok {
		t.Fatalf("expected de label, got %v", report.Entity.Labels)
	}
	if report.Subject != "Acme Coffee Roasters Inc." {
		t.Errorf("Subject = %q", report.Subject)
	}
}
