// Package wikibase models the Wikibase JSON entity format used by the
// wbeditentity Action API: entities, claims, snaks, references and the
// closed set of datavalue variants.
package wikibase

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	pidPattern = regexp.MustCompile(`^P[1-9][0-9]*$`)
	qidPattern = regexp.MustCompile(`^Q[1-9][0-9]*$`)
)

// Well-known concept URIs
const (
	EntityPrefix      = "http://www.wikidata.org/entity/"
	GregorianCalendar = EntityPrefix + "Q1985727"
	EarthGlobe        = EntityPrefix + "Q2"
	DimensionlessUnit = "1"
	DefaultLanguage   = "en"
	MaxTermLength     = 250 // UTF-16 code units, labels and descriptions
)

// IsPID reports whether s is a property identifier such as "P31"
func IsPID(s string) bool {
	return pidPattern.MatchString(s)
}

// IsQID reports whether s is an item identifier such as "Q42"
func IsQID(s string) bool {
	return qidPattern.MatchString(s)
}

// NumericID returns the integer part of a QID or PID, or 0 if id is malformed
func NumericID(id string) int64 {
	if !IsQID(id) && !IsPID(id) {
		return 0
	}
	n, err := strconv.ParseInt(id[1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ConceptURI returns the entity URI for a QID (used for units and globes)
func ConceptURI(qid string) string {
	return EntityPrefix + qid
}

// QIDFromURI extracts the QID from a concept URI, returning "" if there is none
func QIDFromURI(uri string) string {
	id := strings.TrimPrefix(uri, EntityPrefix)
	if id == uri || !IsQID(id) {
		return ""
	}
	return id
}
