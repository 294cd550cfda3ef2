package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// BusinessRecord is the canonical record of a business as owned by the calling workflow
type BusinessRecord struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Category string   `json:"category,omitempty"`
	Location Location `json:"location"`
}

// Location is a postal location with optional coordinates
type Location struct {
	City      string   `json:"city,omitempty"`
	State     string   `json:"state,omitempty"`
	Country   string   `json:"country,omitempty"`
	Address   string   `json:"address,omitempty"`
	Latitude  *float64 `json:"lat,omitempty"`
	Longitude *float64 `json:"lng,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are known
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// CrawledData is enrichment harvested from the business website.
// Every field is optional.
type CrawledData struct {
	SourceURL   string     `json:"sourceUrl,omitempty"`   // Page the data was harvested from
	SourceTitle string     `json:"sourceTitle,omitempty"` // <title> of that page
	CrawledAt   *time.Time `json:"crawledAt,omitempty"`   // Retrieval time

	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Address     string `json:"address,omitempty"`
	FoundedDate string `json:"foundedDate,omitempty"`

	SocialLinks     *SocialLinks     `json:"socialLinks,omitempty"`
	BusinessDetails *BusinessDetails `json:"businessDetails,omitempty"`
	LLMEnhanced     *LLMEnhanced     `json:"llmEnhanced,omitempty"`
}

// SocialLinks holds profile URLs discovered on the site
type SocialLinks struct {
	Facebook  string `json:"facebook,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
}

// BusinessDetails is structured company information
type BusinessDetails struct {
	Industry      string     `json:"industry,omitempty"`
	IndustryQID   string     `json:"industryQid,omitempty"`
	EmployeeCount FlexString `json:"employeeCount,omitempty"`
	LegalForm     string     `json:"legalForm,omitempty"`
	LegalFormQID  string     `json:"legalFormQid,omitempty"`
	Headquarters  string     `json:"headquarters,omitempty"`
	ParentCompany string     `json:"parentCompany,omitempty"`
	Products      []string   `json:"products,omitempty"`
	Services      []string   `json:"services,omitempty"`
}

// LLMEnhanced is the output of upstream LLM enrichment
type LLMEnhanced struct {
	ExtractedEntities []string `json:"extractedEntities,omitempty"`
	BusinessCategory  string   `json:"businessCategory,omitempty"`
	Confidence        float64  `json:"confidence,omitempty"`
}

// FlexString accepts either a JSON string or a JSON number
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// NotabilityAssessment is the verdict of the upstream web-search notability check
type NotabilityAssessment struct {
	IsNotable             bool               `json:"isNotable"`
	Confidence            float64            `json:"confidence"`
	SeriousReferenceCount int                `json:"seriousReferenceCount"`
	Reasons               []string           `json:"reasons,omitempty"`
	TopReferences         []NotabilitySource `json:"topReferences,omitempty"`
}

// NotabilitySource is a search hit backing the notability verdict
type NotabilitySource struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Input bundles everything needed to assess and publish one business
type Input struct {
	Business   BusinessRecord        `json:"business"`
	Crawled    *CrawledData          `json:"crawled,omitempty"`
	Notability *NotabilityAssessment `json:"notability,omitempty"`
}

// DecodeInput reads a single JSON input document. Unknown fields are
// rejected so a misspelled key does not silently drop a property.
func DecodeInput(r io.Reader) (*Input, error) {
	var in Input
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if strings.TrimSpace(in.Business.ID) == "" {
		return nil, fmt.Errorf("decode input: business.id is required")
	}
	return &in, nil
}
