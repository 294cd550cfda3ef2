package assemble

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	twitterHandle   = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)
	instagramHandle = regexp.MustCompile(`^[A-Za-z0-9_.]{1,30}$`)
	facebookID      = regexp.MustCompile(`^[A-Za-z0-9.\-]{1,50}$`)
	linkedinID      = regexp.MustCompile(`^[A-Za-z0-9\-_%]{1,100}$`)
)

var reservedPaths = map[string]bool{
	"share": true, "sharer": true, "intent": true, "home": true, "login": true,
	"pages": true, "p": true, "explore": true, "hashtag": true, "search": true,
}

// profile is a social platform mapped to an external-id property
type profile struct {
	hosts   []string
	prefix  []string // path segments preceding the handle
	pattern *regexp.Regexp
}

var (
	twitterProfile   = profile{hosts: []string{"twitter.com", "x.com"}, pattern: twitterHandle}
	facebookProfile  = profile{hosts: []string{"facebook.com", "fb.com"}, pattern: facebookID}
	instagramProfile = profile{hosts: []string{"instagram.com"}, pattern: instagramHandle}
	linkedinProfile  = profile{hosts: []string{"linkedin.com"}, prefix: []string{"company"}, pattern: linkedinID}
)

// handle extracts the account identifier from a profile URL or a bare handle
func (p profile) handle(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if !strings.Contains(s, "/") && !strings.Contains(s, ".") {
		h := strings.TrimPrefix(s, "@")
		if len(p.prefix) == 0 && p.pattern.MatchString(h) {
			return h
		}
		return ""
	}

	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	if !p.matchesHost(host) {
		return ""
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	for _, want := range p.prefix {
		if len(segments) == 0 || !strings.EqualFold(segments[0], want) {
			return ""
		}
		segments = segments[1:]
	}
	if len(segments) == 0 {
		return ""
	}

	h := strings.TrimPrefix(segments[0], "@")
	if reservedPaths[strings.ToLower(h)] || !p.pattern.MatchString(h) {
		return ""
	}
	return h
}

func (p profile) matchesHost(host string) bool {
	for _, h := range p.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
