package model

import (
	"fmt"
	"strings"
)

// PublishStatus tracks a business through the publish lifecycle:
// unpublished -> publishing -> published | error, and error -> publishing on retry.
type PublishStatus string

const (
	StatusUnpublished PublishStatus = "unpublished"
	StatusPublishing  PublishStatus = "publishing"
	StatusPublished   PublishStatus = "published"
	StatusError       PublishStatus = "error"
)

// CanStartPublish reports whether a publish may begin from this status
func (s PublishStatus) CanStartPublish() bool {
	return s == StatusUnpublished || s == StatusError || s == ""
}

// Target selects the Wikibase instance to write to
type Target string

const (
	TargetTest       Target = "test"
	TargetProduction Target = "production"
)

// ParseTarget parses a target name
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "test", "testwikidata", "test.wikidata.org":
		return TargetTest, nil
	case "production", "prod", "wikidata", "www.wikidata.org":
		return TargetProduction, nil
	default:
		return "", fmt.Errorf("unknown target %q (supported: test, production)", s)
	}
}
