// Package validate decides whether an assembled entity may be published and
// classifies the sources its references cite.
package validate

import (
	"fmt"
	"strings"

	"github.com/ppiankov/wikiclaim/internal/model"
	"github.com/ppiankov/wikiclaim/internal/wikibase"
)

// MinProperties is the fewest distinct claim properties a publishable entity carries
const MinProperties = 3

// InstanceOfProperty types the entity
const InstanceOfProperty = "P31"

// Rejection reasons
const (
	ReasonNoReferences     = "No references provided"
	ReasonMissingInstance  = `Missing "instance of" (P31) property`
	ReasonExternalRejected = "External notability assessment rejected entity"
)

// ReasonTooFewProperties formats the breadth failure for n properties
func ReasonTooFewProperties(n int) string {
	return fmt.Sprintf("Only %d properties (minimum %d required)", n, MinProperties)
}

// Rule names
const (
	RuleProvenance = "provenance"
	RuleBreadth    = "breadth"
	RuleTyping     = "typing"
	RuleExternal   = "external"
)

// RuleOf names the rule that produced a rejection reason
func RuleOf(reason string) string {
	switch {
	case reason == ReasonNoReferences:
		return RuleProvenance
	case strings.HasPrefix(reason, "Only ") && strings.HasSuffix(reason, "required)"):
		return RuleBreadth
	case reason == ReasonMissingInstance:
		return RuleTyping
	case reason == ReasonExternalRejected:
		return RuleExternal
	default:
		return "unknown"
	}
}

// Validate evaluates the publish gate. Every rule is checked so the reasons
// list is complete. A nil entity fails every structural rule. The entity is
// not modified.
func Validate(entity *wikibase.Entity, external *model.NotabilityAssessment) model.NotabilityResult {
	reasons := []string{}

	if !hasAnyReference(entity) {
		reasons = append(reasons, ReasonNoReferences)
	}

	count := 0
	if entity != nil {
		count = entity.PropertyCount()
	}
	if count < MinProperties {
		reasons = append(reasons, ReasonTooFewProperties(count))
	}

	if entity == nil || !entity.Claims.Has(InstanceOfProperty) {
		reasons = append(reasons, ReasonMissingInstance)
	}

	if external != nil && !external.IsNotable {
		reasons = append(reasons, ReasonExternalRejected)
	}

	return model.NotabilityResult{
		IsNotable: len(reasons) == 0,
		Reasons:   reasons,
	}
}

func hasAnyReference(entity *wikibase.Entity) bool {
	if entity == nil {
		return false
	}
	for _, c := range entity.AllClaims() {
		if c.HasReferences() {
			return true
		}
	}
	return false
}
