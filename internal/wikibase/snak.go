package wikibase

import (
	"encoding/json"
	"fmt"
)

// SnakType distinguishes a concrete value from the explicit markers
type SnakType string

const (
	SnakValue     SnakType = "value"
	SnakNoValue   SnakType = "novalue"
	SnakSomeValue SnakType = "somevalue"
)

// Property datatypes as reported by Wikibase
const (
	DataTypeItem            = "wikibase-item"
	DataTypeURL             = "url"
	DataTypeString          = "string"
	DataTypeExternalID      = "external-id"
	DataTypeTime            = "time"
	DataTypeQuantity        = "quantity"
	DataTypeMonolingualText = "monolingualtext"
	DataTypeGlobeCoordinate = "globe-coordinate"
)

// Snak is a single property-value assertion.
// DataValue is set iff SnakType is SnakValue.
type Snak struct {
	SnakType  SnakType
	Property  string
	DataType  string
	DataValue DataValue
	Hash      string
}

// ValueSnak builds a value snak
func ValueSnak(pid, dataType string, dv DataValue) Snak {
	return Snak{SnakType: SnakValue, Property: pid, DataType: dataType, DataValue: dv}
}

// NoValueSnak asserts that pid has no value
func NoValueSnak(pid string) Snak {
	return Snak{SnakType: SnakNoValue, Property: pid}
}

// SomeValueSnak asserts that pid has an unknown value
func SomeValueSnak(pid string) Snak {
	return Snak{SnakType: SnakSomeValue, Property: pid}
}

// Validate checks the snaktype/datavalue coupling and the property ID
func (s Snak) Validate() error {
	if !IsPID(s.Property) {
		return fmt.Errorf("snak: invalid property id %q", s.Property)
	}
	switch s.SnakType {
	case SnakValue:
		if s.DataValue == nil {
			return fmt.Errorf("snak %s: value snak without datavalue", s.Property)
		}
	case SnakNoValue, SnakSomeValue:
		if s.DataValue != nil {
			return fmt.Errorf("snak %s: %s snak carries a datavalue", s.Property, s.SnakType)
		}
	default:
		return fmt.Errorf("snak %s: unknown snaktype %q", s.Property, s.SnakType)
	}
	return nil
}

type wireSnak struct {
	SnakType  SnakType        `json:"snaktype"`
	Property  string          `json:"property"`
	Hash      string          `json:"hash,omitempty"`
	DataValue json.RawMessage `json:"datavalue,omitempty"`
	DataType  string          `json:"datatype,omitempty"`
}

// MarshalJSON encodes the snak in Wikibase form, rejecting invalid snaks
func (s Snak) MarshalJSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	wire := wireSnak{
		SnakType: s.SnakType,
		Property: s.Property,
		Hash:     s.Hash,
		DataType: s.DataType,
	}
	if s.DataValue != nil {
		dv, err := marshalDataValue(s.DataValue)
		if err != nil {
			return nil, fmt.Errorf("snak %s: %w", s.Property, err)
		}
		wire.DataValue = dv
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes a Wikibase snak
func (s *Snak) UnmarshalJSON(data []byte) error {
	var wire wireSnak
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*s = Snak{
		SnakType: wire.SnakType,
		Property: wire.Property,
		DataType: wire.DataType,
		Hash:     wire.Hash,
	}
	if len(wire.DataValue) > 0 && string(wire.DataValue) != "null" {
		dv, err := unmarshalDataValue(wire.DataValue)
		if err != nil {
			return fmt.Errorf("snak %s: %w", wire.Property, err)
		}
		s.DataValue = dv
	}
	return s.Validate()
}
