package pricing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// SystemType classifies the package being quoted.
type SystemType string

const (
	SystemDCR       SystemType = "dcr"
	SystemNonDCR    SystemType = "non-dcr"
	SystemBoth      SystemType = "both"
	SystemHybrid    SystemType = "hybrid"
	SystemCustomize SystemType = "customize"
)

// Valid reports whether t is a known system type.
func (t SystemType) Valid() bool {
	switch t {
	case SystemDCR, SystemNonDCR, SystemBoth, SystemHybrid, SystemCustomize:
		return true
	}
	return false
}

// Component names a priced part of the installation.
type Component string

const (
	ComponentPanel     Component = "panel"
	ComponentInverter  Component = "inverter"
	ComponentStructure Component = "structure"
	ComponentMeter     Component = "meter"
	ComponentCables    Component = "cables"
	ComponentACDB      Component = "acdb"
	ComponentDCDB      Component = "dcdb"
	ComponentBattery   Component = "battery"
)

// Item is a brand/size/quantity selection for one component.
type Item struct {
	Brand    string `json:"brand,omitempty"`
	Size     string `json:"size,omitempty"`
	Quantity int    `json:"quantity,omitempty" validate:"gte=0"`
}

// Battery is the optional storage selection for hybrid systems.
type Battery struct {
	Brand    string `json:"brand,omitempty"`
	Capacity string `json:"capacity" validate:"required"`
	Quantity int    `json:"quantity,omitempty" validate:"gte=0"`
}

// CustomPanel is one line of a customized panel mix.
type CustomPanel struct {
	Brand    string  `json:"brand" validate:"required"`
	Size     string  `json:"size" validate:"required"`
	Quantity int     `json:"quantity" validate:"required,gt=0"`
	Type     string  `json:"type,omitempty"`
	Price    float64 `json:"price" validate:"gte=0"`
}

// ProductSelection is the dealer's component choice for a quotation.
//
// The loosely typed price fields mirror what older clients send: a number, a
// numeric string, an empty string or null.
type ProductSelection struct {
	SystemType   SystemType    `json:"systemType" validate:"required"`
	Panel        Item          `json:"panel"`
	Inverter     Item          `json:"inverter"`
	Structure    Item          `json:"structure"`
	Meter        Item          `json:"meter"`
	Cables       Item          `json:"cables"`
	ACDB         Item          `json:"acdb"`
	DCDB         Item          `json:"dcdb"`
	Battery      *Battery      `json:"battery,omitempty"`
	CustomPanels []CustomPanel `json:"customPanels,omitempty" validate:"dive"`

	CentralSubsidy any `json:"centralSubsidy,omitempty"`
	StateSubsidy   any `json:"stateSubsidy,omitempty"`
	SystemPrice    any `json:"systemPrice,omitempty"`
	Subtotal       any `json:"subtotal,omitempty"`
	TotalAmount    any `json:"totalAmount,omitempty"`
	FinalAmount    any `json:"finalAmount,omitempty"`
}

// PriceFields exposes the product-level monetary fields for resolution.
func (p ProductSelection) PriceFields() Fields {
	return Fields{
		FieldSystemPrice:    p.SystemPrice,
		FieldSubtotal:       p.Subtotal,
		FieldTotalAmount:    p.TotalAmount,
		FieldFinalAmount:    p.FinalAmount,
		FieldCentralSubsidy: p.CentralSubsidy,
		FieldStateSubsidy:   p.StateSubsidy,
	}
}

// Number converts a loosely typed client value into a finite float.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseRating reads the leading number of a size label such as "545W",
// "5kW", "3.3 kW" or "5kWh", returning it in the base unit (W or Wh).
func parseRating(label string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(label))
	if s == "" {
		return 0, false
	}
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	value, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	unit := strings.TrimSpace(s[end:])
	if strings.HasPrefix(unit, "k") {
		value *= 1000
	}
	return value, true
}

func kilo(label string) (float64, bool) {
	base, ok := parseRating(label)
	if !ok {
		return 0, false
	}
	return base / 1000, true
}
