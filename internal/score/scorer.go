// Package score computes an advisory publish-readiness index. It never
// changes the notability verdict.
package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/wikiclaim/internal/model"
	"github.com/ppiankov/wikiclaim/internal/validate"
	"github.com/ppiankov/wikiclaim/internal/wikibase"
)

// breadthTarget is the property count that earns full breadth points
const breadthTarget = 8

// Scorer calculates the readiness index and generates signals
type Scorer struct {
	authority *validate.AuthorityClassifier
}

// NewScorer creates a new scorer. A nil classifier uses the default authority config.
func NewScorer(authority *validate.AuthorityClassifier) *Scorer {
	if authority == nil {
		authority = validate.NewAuthorityClassifier(nil)
	}
	return &Scorer{authority: authority}
}

// Calculate scores an assembled entity and the optional upstream notability verdict.
// businessURL identifies self-published references.
func (s *Scorer) Calculate(entity *wikibase.Entity, businessURL string, external *model.NotabilityAssessment) model.Score {
	var signals []model.Signal

	// 1. Reference coverage (0-40 points)
	coverageScore, coverageSignal := s.calculateCoverage(entity)
	signals = append(signals, coverageSignal)

	// 2. Property breadth (0-20 points)
	breadthScore, breadthSignal := s.calculateBreadth(entity)
	signals = append(signals, breadthSignal)

	// 3. Independent references (0-25 points)
	authorityScore, authoritySignal, cited := s.calculateAuthority(entity, businessURL)
	signals = append(signals, authoritySignal)

	// 4. External notability (0-15 points)
	externalScore, externalSignal := s.calculateExternal(external)
	signals = append(signals, externalSignal)

	totalScore := coverageScore + breadthScore + authorityScore + externalScore
	if totalScore > 100 {
		totalScore = 100
	}

	return model.Score{
		Index:      totalScore,
		Confidence: s.determineConfidence(totalScore, cited, external),
		Signals:    signals,
	}
}

// calculateCoverage scores the share of claims carrying a reference (0-40 points)
func (s *Scorer) calculateCoverage(entity *wikibase.Entity) (int, model.Signal) {
	claimCount := 0
	referenced := 0
	if entity != nil {
		for _, c := range entity.AllClaims() {
			claimCount++
			if c.HasReferences() {
				referenced++
			}
		}
	}

	if claimCount == 0 {
		return 0, model.Signal{
			Type:        model.SignalReferenceCoverage,
			Severity:    model.SeverityCritical,
			Description: "No claims assembled",
			Data: map[string]interface{}{
				"claims":     0,
				"referenced": 0,
			},
		}
	}

	ratio := float64(referenced) / float64(claimCount)
	score := int(math.Min(ratio*40, 40))

	severity := model.SeverityInfo
	if referenced == 0 {
		severity = model.SeverityCritical
	} else if ratio < 1.0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalReferenceCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Referenced claims: %d/%d", referenced, claimCount),
		Data: map[string]interface{}{
			"claims":     claimCount,
			"referenced": referenced,
			"ratio":      ratio,
			"score":      score,
			"formula":    "referenced / claims * 40",
		},
	}
}

// calculateBreadth scores the number of distinct properties (0-20 points)
func (s *Scorer) calculateBreadth(entity *wikibase.Entity) (int, model.Signal) {
	properties := 0
	if entity != nil {
		properties = entity.PropertyCount()
	}

	score := int(math.Min(float64(properties)/breadthTarget*20, 20))

	severity := model.SeverityInfo
	if properties < validate.MinProperties {
		severity = model.SeverityCritical
	} else if properties < 5 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalPropertyBreadth,
		Severity:    severity,
		Description: fmt.Sprintf("Distinct properties: %d", properties),
		Data: map[string]interface{}{
			"properties": properties,
			"minimum":    validate.MinProperties,
			"score":      score,
			"formula":    fmt.Sprintf("min(properties / %d * 20, 20)", breadthTarget),
		},
	}
}

// calculateAuthority scores the authority of cited reference URLs (0-25 points).
// It also returns the number of distinct cited URLs.
func (s *Scorer) calculateAuthority(entity *wikibase.Entity, businessURL string) (int, model.Signal, int) {
	urls := validate.ReferenceURLs(entity)
	if len(urls) == 0 {
		return 0, model.Signal{
			Type:        model.SignalIndependentReferences,
			Severity:    model.SeverityWarning,
			Description: "No reference URLs cited",
			Data:        map[string]interface{}{"cited": 0},
		}, 0
	}

	counts := make(map[model.AuthorityTier]int)
	for _, u := range urls {
		counts[s.authority.Classify(u, businessURL)]++
	}

	primaryCount := counts[model.TierPrimary]
	secondaryCount := counts[model.TierSecondary]
	tertiaryCount := counts[model.TierTertiary]
	selfCount := counts[model.TierSelfPublished] + counts[model.TierUnknown]

	total := len(urls)
	weightedSum := float64(primaryCount*3 + secondaryCount*2 + tertiaryCount*1)
	maxPossible := float64(total * 3)
	score := int((weightedSum / maxPossible) * 25)

	independent := primaryCount + secondaryCount
	severity := model.SeverityInfo
	if independent == 0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:     model.SignalIndependentReferences,
		Severity: severity,
		Description: fmt.Sprintf("Reference sources: %d primary, %d secondary, %d tertiary, %d self-published",
			primaryCount, secondaryCount, tertiaryCount, selfCount),
		Data: map[string]interface{}{
			"primary":        primaryCount,
			"secondary":      secondaryCount,
			"tertiary":       tertiaryCount,
			"self_published": selfCount,
			"independent":    independent,
			"cited":          total,
			"score":          score,
			"formula":        "(primary*3 + secondary*2 + tertiary*1) / (cited*3) * 25",
		},
	}, total
}

// calculateExternal scores the upstream notability verdict (0-15 points)
func (s *Scorer) calculateExternal(external *model.NotabilityAssessment) (int, model.Signal) {
	if external == nil {
		return 0, model.Signal{
			Type:        model.SignalExternalNotability,
			Severity:    model.SeverityInfo,
			Description: "No external notability assessment supplied",
			Data:        map[string]interface{}{"supplied": false},
		}
	}

	confidence := math.Max(0, math.Min(external.Confidence, 1))
	if !external.IsNotable {
		return 0, model.Signal{
			Type:        model.SignalExternalNotability,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("External assessment: not notable (confidence %.2f)", confidence),
			Data: map[string]interface{}{
				"supplied":                true,
				"is_notable":              false,
				"confidence":              confidence,
				"serious_reference_count": external.SeriousReferenceCount,
				"reasons":                 external.Reasons,
			},
		}
	}

	score := int(confidence * 15)
	severity := model.SeverityInfo
	if external.SeriousReferenceCount == 0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:     model.SignalExternalNotability,
		Severity: severity,
		Description: fmt.Sprintf("External assessment: notable (confidence %.2f, %d serious references)",
			confidence, external.SeriousReferenceCount),
		Data: map[string]interface{}{
			"supplied":                true,
			"is_notable":              true,
			"confidence":              confidence,
			"serious_reference_count": external.SeriousReferenceCount,
			"score":                   score,
			"formula":                 "confidence * 15",
		},
	}
}

// determineConfidence determines the confidence level based on the score
func (s *Scorer) determineConfidence(score int, cited int, external *model.NotabilityAssessment) string {
	if external != nil && !external.IsNotable {
		return "low"
	}

	if cited < 2 && external == nil {
		return "low"
	}

	if score >= 80 {
		return "high"
	} else if score >= 60 {
		return "medium"
	} else {
		return "low"
	}
}
