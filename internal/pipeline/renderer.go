package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/wikiclaim/internal/model"
	"github.com/ppiankov/wikiclaim/internal/wikibase"
)

// propertyLabels names the properties the assembler emits. Presentation only.
var propertyLabels = map[string]string{
	"P31":   "instance of",
	"P452":  "industry",
	"P571":  "inception",
	"P625":  "coordinate location",
	"P813":  "retrieved",
	"P854":  "reference URL",
	"P856":  "official website",
	"P968":  "email address",
	"P969":  "located at street address",
	"P1128": "employees",
	"P1329": "phone number",
	"P1448": "official name",
	"P1454": "legal form",
	"P1476": "title",
	"P2002": "X username",
	"P2003": "Instagram username",
	"P2013": "Facebook username",
	"P4264": "LinkedIn company or organization ID",
	"P6375": "street address",
}

// PropertyLabel returns a human-readable name for pid, or pid itself
func PropertyLabel(pid string) string {
	if label, ok := propertyLabels[pid]; ok {
		return label
	}
	return pid
}

// Renderer writes reports as JSON and Markdown
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the report as Markdown
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// RenderEntity writes the bare entity document, as sent to wbeditentity
func RenderEntity(w io.Writer, entity *wikibase.Entity) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entity); err != nil {
		return fmt.Errorf("encode entity: %w", err)
	}
	return nil
}

// Markdown renders the report
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", report.Subject)
	fmt.Fprintf(&b, "- Business ID: `%s`\n", report.BusinessID)
	if report.SourceURL != "" {
		fmt.Fprintf(&b, "- Website: %s\n", report.SourceURL)
	}
	fmt.Fprintf(&b, "- Assessed: %s\n", report.AssessedAt.Format("2006-01-02 15:04:05 MST"))
	b.WriteString("\n## Notability\n\n")
	if report.Notability.IsNotable {
		b.WriteString("✓ Passes the notability gate\n")
	} else {
		b.WriteString("✗ Fails the notability gate\n\n")
		for _, reason := range report.Notability.Reasons {
			fmt.Fprintf(&b, "- %s\n", reason)
		}
	}

	if ext := report.External; ext != nil {
		b.WriteString("\n### External assessment\n\n")
		fmt.Fprintf(&b, "- Notable: %t (confidence %.2f)\n", ext.IsNotable, ext.Confidence)
		fmt.Fprintf(&b, "- Serious references: %d\n", ext.SeriousReferenceCount)
		for _, ref := range ext.TopReferences {
			fmt.Fprintf(&b, "- [%s](%s) (%s)\n", ref.Title, ref.URL, ref.Source)
		}
	}

	fmt.Fprintf(&b, "\n## Readiness: %d/100 (%s confidence)\n\n", report.Score.Index, report.Score.Confidence)
	for _, sig := range report.Score.Signals {
		fmt.Fprintf(&b, "- **%s** [%s]: %s\n", sig.Type, sig.Severity, sig.Description)
	}

	if report.Entity != nil {
		b.WriteString("\n## Claims\n\n")
		b.WriteString("| Property | Value | Referenced |\n")
		b.WriteString("|---|---|---|\n")
		for _, pid := range report.Entity.Claims.Keys() {
			for _, claim := range report.Entity.Claims.Get(pid) {
				ref := "no"
				if claim.HasReferences() {
					ref = "yes"
				}
				fmt.Fprintf(&b, "| %s (%s) | %s | %s |\n", PropertyLabel(pid), pid, escapeCell(FormatSnak(claim.MainSnak)), ref)
			}
		}
	}

	if pub := report.Publish; pub != nil {
		b.WriteString("\n## Publish\n\n")
		fmt.Fprintf(&b, "- Target: %s\n", pub.Target)
		fmt.Fprintf(&b, "- Status: %s\n", pub.Status)
		if pub.QID != "" {
			fmt.Fprintf(&b, "- QID: %s\n", pub.QID)
		}
		if pub.Error != "" {
			fmt.Fprintf(&b, "- Error (%s): %s\n", pub.ErrorKind, pub.Error)
		}
		fmt.Fprintf(&b, "- Attempts: %d\n", pub.Attempts)
	}

	if r.includeFooter {
		b.WriteString("\n---\n\n")
		b.WriteString("*Generated by wikiclaim. The readiness score is advisory; only the notability gate decides whether an item is created.*\n")
	}

	return b.String()
}

// RenderSummary prints a short summary
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	mark := "✓"
	if !report.Notability.IsNotable {
		mark = "✗"
	}
	_, _ = fmt.Fprintf(w, "%s %s: %d properties, readiness %d/100 (%s)\n",
		mark, report.Subject, report.Entity.PropertyCount(), report.Score.Index, report.Score.Confidence)
	for _, reason := range report.Notability.Reasons {
		_, _ = fmt.Fprintf(w, "    - %s\n", reason)
	}
	if pub := report.Publish; pub != nil && pub.QID != "" {
		_, _ = fmt.Fprintf(w, "    QID: %s (%s)\n", pub.QID, pub.Target)
	}
}

// RenderBatch writes a JSON and a Markdown report per business into dir.
// Reports are written in parallel; the first error cancels the rest.
func (r *Renderer) RenderBatch(ctx context.Context, reports []*model.Report, dir string, workers int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if workers <= 0 {
		workers = 1
	}

	stems := uniqueSlugs(reports)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, report := range reports {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			base := filepath.Join(dir, stems[i])
			if err := r.RenderJSON(report, base+".json"); err != nil {
				return fmt.Errorf("%s: %w", report.BusinessID, err)
			}
			if err := r.RenderMarkdown(report, base+".md"); err != nil {
				return fmt.Errorf("%s: %w", report.BusinessID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ReportSlug is the file name stem for a report
func ReportSlug(report *model.Report) string {
	s := report.BusinessID
	if s == "" {
		s = report.Subject
	}
	return sanitizeFilename(s)
}

// uniqueSlugs returns one file stem per report. A stem already taken,
// compared case-insensitively, gets a -2, -3, ... suffix.
func uniqueSlugs(reports []*model.Report) []string {
	stems := make([]string, len(reports))
	taken := make(map[string]bool, len(reports))
	for i, report := range reports {
		slug := ReportSlug(report)
		stem := slug
		for n := 2; taken[strings.ToLower(stem)]; n++ {
			stem = slug + "-" + strconv.Itoa(n)
		}
		taken[strings.ToLower(stem)] = true
		stems[i] = stem
	}
	return stems
}

const maxFilenameBytes = 100

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(strings.TrimSpace(s))
	s = strings.Trim(s, ".")

	// Limit length in bytes without splitting a rune
	if len(s) > maxFilenameBytes {
		cut := maxFilenameBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	if s == "" {
		s = "report"
	}
	return s
}

// FormatSnak renders a snak value for humans
func FormatSnak(s wikibase.Snak) string {
	switch s.SnakType {
	case wikibase.SnakNoValue:
		return "no value"
	case wikibase.SnakSomeValue:
		return "unknown value"
	}

	switch v := s.DataValue.(type) {
	case wikibase.EntityID:
		return v.ID
	case wikibase.String:
		return string(v)
	case wikibase.MonolingualText:
		return fmt.Sprintf("%s (%s)", v.Text, v.Language)
	case wikibase.Time:
		return formatTime(v)
	case wikibase.Quantity:
		q := strings.TrimPrefix(v.Amount, "+")
		if v.UpperBound != "" && v.UpperBound != v.Amount {
			q += "-" + strings.TrimPrefix(v.UpperBound, "+")
		}
		return q
	case wikibase.GlobeCoordinate:
		return strconv.FormatFloat(v.Latitude, 'f', -1, 64) + ", " + strconv.FormatFloat(v.Longitude, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatTime trims a Wikibase timestamp to its precision
func formatTime(t wikibase.Time) string {
	ts := strings.TrimPrefix(t.Time, "+")
	switch t.Precision {
	case wikibase.PrecisionYear:
		if len(ts) >= 4 {
			return ts[:4]
		}
	case wikibase.PrecisionMonth:
		if len(ts) >= 7 {
			return ts[:7]
		}
	case wikibase.PrecisionDay:
		if len(ts) >= 10 {
			return ts[:10]
		}
	}
	return ts
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
