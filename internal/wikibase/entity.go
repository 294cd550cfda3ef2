package wikibase

// Rank orders statements for the same property
type Rank string

const (
	RankPreferred  Rank = "preferred"
	RankNormal     Rank = "normal"
	RankDeprecated Rank = "deprecated"
)

// StatementType is the only claim type the assembler emits
const StatementType = "statement"

// Claim is a main snak with optional rank, qualifiers and references
type Claim struct {
	ID              string             `json:"id,omitempty"`
	MainSnak        Snak               `json:"mainsnak"`
	Type            string             `json:"type"`
	Rank            Rank               `json:"rank,omitempty"`
	Qualifiers      *PropertyMap[Snak] `json:"qualifiers,omitempty"`
	QualifiersOrder []string           `json:"qualifiers-order,omitempty"`
	References      []Reference        `json:"references,omitempty"`
}

// NewClaim wraps a main snak into a statement
func NewClaim(mainSnak Snak) Claim {
	return Claim{MainSnak: mainSnak, Type: StatementType}
}

// AddQualifier appends a qualifier snak and keeps qualifiers-order in sync
func (c *Claim) AddQualifier(s Snak) {
	if c.Qualifiers == nil {
		c.Qualifiers = &PropertyMap[Snak]{}
	}
	if !c.Qualifiers.Has(s.Property) {
		c.QualifiersOrder = append(c.QualifiersOrder, s.Property)
	}
	c.Qualifiers.Add(s.Property, s)
}

// HasReferences reports whether at least one non-empty reference is attached
func (c Claim) HasReferences() bool {
	for _, ref := range c.References {
		if ref.Snaks.Len() > 0 {
			return true
		}
	}
	return false
}

// Reference is a provenance block made of snaks
type Reference struct {
	Hash       string            `json:"hash,omitempty"`
	Snaks      PropertyMap[Snak] `json:"snaks"`
	SnaksOrder []string          `json:"snaks-order,omitempty"`
}

// Add appends a snak to the reference and keeps snaks-order in sync
func (r *Reference) Add(s Snak) {
	if !r.Snaks.Has(s.Property) {
		r.SnaksOrder = append(r.SnaksOrder, s.Property)
	}
	r.Snaks.Add(s.Property, s)
}

// Entity is a Wikibase item document
type Entity struct {
	ID           string             `json:"id,omitempty"`
	Type         string             `json:"type,omitempty"`
	Labels       Terms              `json:"labels"`
	Descriptions Terms              `json:"descriptions"`
	Claims       PropertyMap[Claim] `json:"claims"`
	LastRevID    int64              `json:"lastrevid,omitempty"`
	Modified     string             `json:"modified,omitempty"`
}

// NewEntity returns an empty item document
func NewEntity() *Entity {
	return &Entity{
		Labels:       Terms{},
		Descriptions: Terms{},
	}
}

// SetLabel sets the label for lang, cut to the term length limit
func (e *Entity) SetLabel(lang, value string) {
	if e.Labels == nil {
		e.Labels = Terms{}
	}
	e.Labels[lang] = Term{Language: lang, Value: TruncateUTF16(value, MaxTermLength)}
}

// SetDescription sets the description for lang, cut to the term length limit
func (e *Entity) SetDescription(lang, value string) {
	if e.Descriptions == nil {
		e.Descriptions = Terms{}
	}
	e.Descriptions[lang] = Term{Language: lang, Value: TruncateUTF16(value, MaxTermLength)}
}

// AddClaim files c under its main snak property
func (e *Entity) AddClaim(c Claim) {
	e.Claims.Add(c.MainSnak.Property, c)
}

// PropertyCount returns the number of distinct claim properties
func (e *Entity) PropertyCount() int {
	return e.Claims.Len()
}

// ClaimCount returns the total number of claims across all properties
func (e *Entity) ClaimCount() int {
	n := 0
	for _, pid := range e.Claims.keys {
		n += len(e.Claims.values[pid])
	}
	return n
}

// AllClaims returns every claim in property insertion order
func (e *Entity) AllClaims() []Claim {
	var out []Claim
	for _, pid := range e.Claims.keys {
		out = append(out, e.Claims.values[pid]...)
	}
	return out
}
