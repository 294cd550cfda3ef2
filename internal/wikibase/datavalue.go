package wikibase

import (
	"encoding/json"
	"fmt"
)

// DataValueType is the wire tag of a datavalue
type DataValueType string

const (
	TypeEntityID        DataValueType = "wikibase-entityid"
	TypeString          DataValueType = "string"
	TypeTime            DataValueType = "time"
	TypeQuantity        DataValueType = "quantity"
	TypeMonolingualText DataValueType = "monolingualtext"
	TypeGlobeCoordinate DataValueType = "globecoordinate"
)

// DataValue is the closed union of Wikibase datavalue shapes.
// Only the types declared in this package implement it.
type DataValue interface {
	Type() DataValueType
	dataValue()
}

// EntityType distinguishes item and property references
type EntityType string

const (
	EntityTypeItem     EntityType = "item"
	EntityTypeProperty EntityType = "property"
)

// EntityID references another item or property
type EntityID struct {
	EntityType EntityType `json:"entity-type"`
	ID         string     `json:"id"`
	NumericID  int64      `json:"numeric-id,omitempty"`
}

// ItemID builds an item reference for a QID
func ItemID(qid string) EntityID {
	return EntityID{EntityType: EntityTypeItem, ID: qid, NumericID: NumericID(qid)}
}

// String is a raw string value (URLs, identifiers, free text)
type String string

// Time is a point in time with explicit precision
type Time struct {
	Time          string        `json:"time"`
	Timezone      int           `json:"timezone"`
	Before        int           `json:"before"`
	After         int           `json:"after"`
	Precision     TimePrecision `json:"precision"`
	CalendarModel string        `json:"calendarmodel"`
}

// TimePrecision ranges from 0 (billion years) to 14 (second)
type TimePrecision int

const (
	PrecisionYear  TimePrecision = 9
	PrecisionMonth TimePrecision = 10
	PrecisionDay   TimePrecision = 11
)

// Quantity is a decimal amount with an optional unit and bounds
type Quantity struct {
	Amount     string `json:"amount"`
	Unit       string `json:"unit"`
	UpperBound string `json:"upperBound,omitempty"`
	LowerBound string `json:"lowerBound,omitempty"`
}

// MonolingualText is text tagged with a language code
type MonolingualText struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// GlobeCoordinate is a position on a globe
type GlobeCoordinate struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
	Precision float64  `json:"precision"`
	Globe     string   `json:"globe"`
}

func (EntityID) Type() DataValueType { return TypeEntityID }
func (String) Type() DataValueType { return TypeString }
func (Time) Type() DataValueType { return TypeTime }
func (Quantity) Type() DataValueType { return TypeQuantity }
func (MonolingualText) Type() DataValueType { return TypeMonolingualText }
func (GlobeCoordinate) Type() DataValueType { return TypeGlobeCoordinate }

func (EntityID) dataValue() {}
func (String) dataValue() {}
func (Time) dataValue() {}
func (Quantity) dataValue() {}
func (MonolingualText) dataValue() {}
func (GlobeCoordinate) dataValue() {}

// wireDataValue is the {"value": ..., "type": ...} envelope
type wireDataValue struct {
	Value json.RawMessage `json:"value"`
	Type  DataValueType   `json:"type"`
}

func marshalDataValue(dv DataValue) ([]byte, error) {
	value, err := json.Marshal(dv)
	if err != nil {
		return nil, fmt.Errorf("marshal %s value: %w", dv.Type(), err)
	}
	return json.Marshal(wireDataValue{Value: value, Type: dv.Type()})
}

func unmarshalDataValue(data []byte) (DataValue, error) {
	var wire wireDataValue
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode datavalue: %w", err)
	}

	var (
		dv  DataValue
		err error
	)
	switch wire.Type {
	case TypeEntityID:
		var v EntityID
		err = json.Unmarshal(wire.Value, &v)
		dv = v
	case TypeString:
		var v String
		err = json.Unmarshal(wire.Value, &v)
		dv = v
	case TypeTime:
		var v Time
		err = json.Unmarshal(wire.Value, &v)
		dv = v
	case TypeQuantity:
		var v Quantity
		err = json.Unmarshal(wire.Value, &v)
		dv = v
	case TypeMonolingualText:
		var v MonolingualText
		err = json.Unmarshal(wire.Value, &v)
		dv = v
	case TypeGlobeCoordinate:
		var v GlobeCoordinate
		err = json.Unmarshal(wire.Value, &v)
		dv = v
	default:
		return nil, fmt.Errorf("unknown datavalue type %q", wire.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s value: %w", wire.Type, err)
	}
	return dv, nil
}
