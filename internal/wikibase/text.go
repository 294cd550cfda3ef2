package wikibase

import (
	"bytes"
	"encoding/json"
	"unicode/utf16"
)

// UTF16Len returns the length of s in UTF-16 code units
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

// TruncateUTF16 cuts s to at most limit UTF-16 code units.
// A surrogate pair that would straddle the limit is dropped whole.
func TruncateUTF16(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i, r := range s {
		units := runeUnits(r)
		if n+units > limit {
			return s[:i]
		}
		n += units
	}
	return s
}

func runeUnits(r rune) int {
	if units := utf16.RuneLen(r); units > 0 {
		return units
	}
	return 1
}

// Term is a language-tagged label or description
type Term struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// Terms maps language codes to terms
type Terms map[string]Term

// UnmarshalJSON accepts an empty JSON array as an empty map
func (t *Terms) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("[]")) {
		*t = Terms{}
		return nil
	}
	var m map[string]Term
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*t = m
	return nil
}
