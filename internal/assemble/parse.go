package assemble

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/wikiclaim/internal/wikibase"
)

var (
	yearPattern      = regexp.MustCompile(`^(\d{4})$`)
	yearMonthPattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	fullDatePattern  = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)
	singleCount      = regexp.MustCompile(`^(\d+)\+?$`)
	rangeCount       = regexp.MustCompile(`^(\d+)\s*[-–]\s*(\d+)$`)
)

// parseInception turns "2015", "2015-06" or "2015-06-01" into a time value
// with year, month or day precision
func parseInception(raw string) (wikibase.Time, bool) {
	s := strings.TrimSpace(raw)
	var (
		year, month, day int
		precision        wikibase.TimePrecision
	)

	switch {
	case yearPattern.MatchString(s):
		year, _ = strconv.Atoi(s)
		precision = wikibase.PrecisionYear
	case yearMonthPattern.MatchString(s):
		m := yearMonthPattern.FindStringSubmatch(s)
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		precision = wikibase.PrecisionMonth
	case fullDatePattern.MatchString(s):
		m := fullDatePattern.FindStringSubmatch(s)
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
		precision = wikibase.PrecisionDay
	default:
		return wikibase.Time{}, false
	}

	if year < 1 || month > 12 || day > 31 {
		return wikibase.Time{}, false
	}
	if precision >= wikibase.PrecisionMonth && month < 1 {
		return wikibase.Time{}, false
	}
	if precision == wikibase.PrecisionDay {
		d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if d.Day() != day {
			return wikibase.Time{}, false
		}
	}

	return wikibase.Time{
		Time:          fmt.Sprintf("+%04d-%02d-%02dT00:00:00Z", year, month, day),
		Precision:     precision,
		CalendarModel: wikibase.GregorianCalendar,
	}, true
}

// dayTime renders t as a day-precision time value
func dayTime(t time.Time) wikibase.Time {
	u := t.UTC()
	return wikibase.Time{
		Time:          fmt.Sprintf("+%04d-%02d-%02dT00:00:00Z", u.Year(), int(u.Month()), u.Day()),
		Precision:     wikibase.PrecisionDay,
		CalendarModel: wikibase.GregorianCalendar,
	}
}

// parseEmployeeCount accepts "40", "40+" and "11-50"
func parseEmployeeCount(raw string) (wikibase.Quantity, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")

	if m := singleCount.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n <= 0 {
			return wikibase.Quantity{}, false
		}
		q := wikibase.Quantity{Amount: signed(n), Unit: wikibase.DimensionlessUnit}
		if strings.HasSuffix(s, "+") {
			q.LowerBound = signed(n)
		}
		return q, true
	}

	if m := rangeCount.FindStringSubmatch(s); m != nil {
		lo, err1 := strconv.ParseInt(m[1], 10, 64)
		hi, err2 := strconv.ParseInt(m[2], 10, 64)
		if err1 != nil || err2 != nil || lo <= 0 || hi < lo {
			return wikibase.Quantity{}, false
		}
		return wikibase.Quantity{
			Amount:     signed(lo),
			Unit:       wikibase.DimensionlessUnit,
			LowerBound: signed(lo),
			UpperBound: signed(hi),
		}, true
	}

	return wikibase.Quantity{}, false
}

// signed renders a positive count as a Wikibase decimal amount
func signed(n int64) string {
	return "+" + strconv.FormatInt(n, 10)
}

// normalizeURL returns an absolute http(s) URL or "" if raw cannot be one
func normalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.String()
}

// mailtoURI returns a mailto: URI for an address, or "" if it is not one
func mailtoURI(raw string) string {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "mailto:"))
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 || strings.ContainsAny(s, " \t<>") {
		return ""
	}
	return "mailto:" + s
}

// itemID accepts an explicit QID field or a free-text value that is itself a QID
func itemID(candidates ...string) (wikibase.EntityID, bool) {
	for _, c := range candidates {
		c = strings.ToUpper(strings.TrimSpace(c))
		if wikibase.IsQID(c) {
			return wikibase.ItemID(c), true
		}
	}
	return wikibase.EntityID{}, false
}

func validCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
