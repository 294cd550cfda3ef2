package validate

import (
	"net/url"
	"strings"

	"github.com/ppiankov/wikiclaim/internal/model"
	"github.com/ppiankov/wikiclaim/internal/wikibase"
)

// AuthorityClassifier classifies reference URLs into authority tiers
type AuthorityClassifier struct {
	config        *model.AuthorityConfig
	primaryMap    map[string]bool
	secondaryMap  map[string]bool
	selfPublished map[string]bool
}

// NewAuthorityClassifier creates a new authority classifier
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	classifier := &AuthorityClassifier{
		config:        config,
		primaryMap:    make(map[string]bool),
		secondaryMap:  make(map[string]bool),
		selfPublished: make(map[string]bool),
	}

	for _, domain := range config.PrimaryDomains {
		classifier.primaryMap[normalizeHost(domain)] = true
	}
	for _, domain := range config.SecondaryDomains {
		classifier.secondaryMap[normalizeHost(domain)] = true
	}
	for _, domain := range config.SelfPublished {
		classifier.selfPublished[normalizeHost(domain)] = true
	}

	return classifier
}

// Classify classifies a URL cited on behalf of the business at businessURL.
// Pages on the business's own domain are self-published.
func (a *AuthorityClassifier) Classify(rawURL, businessURL string) model.AuthorityTier {
	host := hostOf(rawURL)
	if host == "" {
		return model.TierUnknown
	}

	if own := hostOf(businessURL); own != "" && sameSite(host, own) {
		return model.TierSelfPublished
	}

	// Explicit mappings from config win
	if a.config.DomainMap != nil {
		if tierStr, ok := a.config.DomainMap[host]; ok {
			return parseTierString(tierStr)
		}
	}

	if matchesDomain(host, a.selfPublished) {
		return model.TierSelfPublished
	}
	if matchesDomain(host, a.primaryMap) {
		return model.TierPrimary
	}
	if matchesDomain(host, a.secondaryMap) {
		return model.TierSecondary
	}

	// Government registries
	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".gov.uk") {
		return model.TierPrimary
	}

	return model.TierTertiary
}

// ReferenceURLs returns the distinct P854 URLs cited anywhere in the entity, in claim order
func ReferenceURLs(entity *wikibase.Entity) []string {
	if entity == nil {
		return nil
	}
	seen := make(map[string]bool)
	var urls []string
	for _, c := range entity.AllClaims() {
		for _, ref := range c.References {
			for _, s := range ref.Snaks.Get("P854") {
				v, ok := s.DataValue.(wikibase.String)
				if !ok || seen[string(v)] {
					continue
				}
				seen[string(v)] = true
				urls = append(urls, string(v))
			}
		}
	}
	return urls
}

// IndependentReferences counts the cited URLs whose tier is primary or secondary
func (a *AuthorityClassifier) IndependentReferences(entity *wikibase.Entity, businessURL string) int {
	n := 0
	for _, u := range ReferenceURLs(entity) {
		if a.Classify(u, businessURL).IsIndependent() {
			n++
		}
	}
	return n
}

func hostOf(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return normalizeHost(parsed.Hostname())
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
}

func sameSite(host, own string) bool {
	return host == own || strings.HasSuffix(host, "."+own) || strings.HasSuffix(own, "."+host)
}

func matchesDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for domain := range domains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// parseTierString converts a tier string to AuthorityTier
func parseTierString(tier string) model.AuthorityTier {
	switch strings.ToLower(tier) {
	case "primary", "1":
		return model.TierPrimary
	case "secondary", "2":
		return model.TierSecondary
	case "self-published", "self_published", "self", "4":
		return model.TierSelfPublished
	default:
		return model.TierTertiary
	}
}
