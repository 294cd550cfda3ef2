package model

import (
	"time"

	"github.com/ppiankov/wikiclaim/internal/wikibase"
)

// Report is the complete assessment of one business
type Report struct {
	BusinessID string    `json:"business_id"`
	Subject    string    `json:"subject"`    // Label of the assembled entity
	SourceURL  string    `json:"source_url"` // Business website
	AssessedAt time.Time `json:"assessed_at"`

	Entity     *wikibase.Entity      `json:"entity"`
	Notability NotabilityResult      `json:"notability"`
	External   *NotabilityAssessment `json:"external_notability,omitempty"`
	Score      Score                 `json:"score"`

	Publish *PublishOutcome `json:"publish,omitempty"`
}

// NotabilityResult is the publish gate verdict.
// Reasons is empty, never nil, when IsNotable is true.
type NotabilityResult struct {
	IsNotable bool     `json:"isNotable"`
	Reasons   []string `json:"reasons"`
}

// PublishOutcome records the result of a publish attempt
type PublishOutcome struct {
	Target    Target        `json:"target"`
	Status    PublishStatus `json:"status"`
	QID       string        `json:"qid,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Attempts  int           `json:"attempts"`
}

// Score is the advisory readiness breakdown. It never changes the gate verdict.
type Score struct {
	Index      int      `json:"index"`      // 0-100
	Confidence string   `json:"confidence"` // "low", "medium", "high"
	Signals    []Signal `json:"signals"`
}

// Signal is a diagnostic signal with its scoring inputs
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies a signal
type SignalType string

const (
	SignalReferenceCoverage     SignalType = "reference_coverage"     // Claims carrying references
	SignalPropertyBreadth       SignalType = "property_breadth"       // Distinct properties
	SignalIndependentReferences SignalType = "independent_references" // References outside the business's own site
	SignalExternalNotability    SignalType = "external_notability"    // Upstream web notability verdict
)

// SignalSeverity indicates the importance of a signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// AuthorityTier classifies a reference source
type AuthorityTier int

const (
	TierUnknown       AuthorityTier = 0
	TierPrimary       AuthorityTier = 1 // Registries, regulators
	TierSecondary     AuthorityTier = 2 // Established media
	TierTertiary      AuthorityTier = 3 // Everything else
	TierSelfPublished AuthorityTier = 4 // The business itself, social profiles, directories, press releases
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	case TierSelfPublished:
		return "self-published"
	default:
		return "unknown"
	}
}

// IsIndependent reports whether the tier counts as independent coverage
func (t AuthorityTier) IsIndependent() bool {
	return t == TierPrimary || t == TierSecondary
}
