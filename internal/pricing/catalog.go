package pricing

import (
	"strings"
	"time"
)

// Catalog holds the component price tables used by Compute.
//
// Options map an exact size/option label to a price and take precedence over
// the rate heuristics.
type Catalog struct {
	PanelRatePerWatt   float64                         `json:"panelRatePerWatt"`
	InverterRatePerKW  float64                         `json:"inverterRatePerKw"`
	StructureRatePerKW float64                         `json:"structureRatePerKw"`
	BatteryRatePerKWh  float64                         `json:"batteryRatePerKwh"`
	CablePrice         float64                         `json:"cablePrice"`
	MeterPrice         float64                         `json:"meterPrice"`
	ACDBDCDBPrice      float64                         `json:"acdbDcdbPrice"`
	Options            map[Component]map[string]float64 `json:"options,omitempty"`
	Brands             map[Component][]string           `json:"brands,omitempty"`
	UpdatedAt          time.Time                       `json:"updatedAt,omitempty"`
}

// DefaultCatalog returns the built-in price heuristics.
func DefaultCatalog() Catalog {
	return Catalog{
		PanelRatePerWatt:   25,
		InverterRatePerKW:  8000,
		StructureRatePerKW: 5000,
		BatteryRatePerKWh:  12000,
		CablePrice:         15000,
		MeterPrice:         8000,
		ACDBDCDBPrice:      12000,
		Brands: map[Component][]string{
			ComponentPanel:     {"Adani", "Waaree", "Vikram", "Tata"},
			ComponentInverter:  {"Growatt", "Sungrow", "Havells", "Polycab"},
			ComponentStructure: {"GI", "Aluminium"},
			ComponentMeter:     {"L&T", "Genus", "Secure"},
			ComponentCables:    {"Polycab", "KEI", "Havells"},
			ComponentACDB:      {"Havells", "Schneider"},
			ComponentDCDB:      {"Havells", "Schneider"},
			ComponentBattery:   {"Exide", "Luminous", "Amaron"},
		},
	}
}

// Validate reports the first missing rate, if any.
func (c Catalog) Validate() map[string]string {
	errs := make(map[string]string)
	check := func(name string, v float64) {
		if v <= 0 {
			errs[name] = "must be greater than zero"
		}
	}
	check("panelRatePerWatt", c.PanelRatePerWatt)
	check("inverterRatePerKw", c.InverterRatePerKW)
	check("structureRatePerKw", c.StructureRatePerKW)
	check("batteryRatePerKwh", c.BatteryRatePerKWh)
	check("cablePrice", c.CablePrice)
	check("meterPrice", c.MeterPrice)
	check("acdbDcdbPrice", c.ACDBDCDBPrice)
	for component, options := range c.Options {
		for label, price := range options {
			if price < 0 {
				errs[string(component)+"."+label] = "must not be negative"
			}
		}
	}
	return errs
}

func (c Catalog) option(component Component, label string) (float64, bool) {
	options, ok := c.Options[component]
	if !ok {
		return 0, false
	}
	label = strings.TrimSpace(label)
	if price, ok := options[label]; ok {
		return price, true
	}
	for key, price := range options {
		if strings.EqualFold(key, label) {
			return price, true
		}
	}
	return 0, false
}

// PanelUnitPrice prices a single panel of the given size.
func (c Catalog) PanelUnitPrice(size string) float64 {
	if price, ok := c.option(ComponentPanel, size); ok {
		return price
	}
	watts, ok := parseRating(size)
	if !ok {
		return 0
	}
	return watts * c.PanelRatePerWatt
}

// InverterPrice prices the inverter for the given rating.
func (c Catalog) InverterPrice(size string) float64 {
	if price, ok := c.option(ComponentInverter, size); ok {
		return price
	}
	kw, ok := kilo(size)
	if !ok {
		return 0
	}
	return kw * c.InverterRatePerKW
}

// StructurePrice prices the mounting structure for the given rating.
func (c Catalog) StructurePrice(size string) float64 {
	if price, ok := c.option(ComponentStructure, size); ok {
		return price
	}
	kw, ok := kilo(size)
	if !ok {
		return 0
	}
	return kw * c.StructureRatePerKW
}

// BatteryUnitPrice prices one battery of the given capacity.
func (c Catalog) BatteryUnitPrice(capacity string) float64 {
	if price, ok := c.option(ComponentBattery, capacity); ok {
		return price
	}
	kwh, ok := kilo(capacity)
	if !ok {
		return 0
	}
	return kwh * c.BatteryRatePerKWh
}

// CablesPrice prices the cable kit.
func (c Catalog) CablesPrice(option string) float64 {
	if price, ok := c.option(ComponentCables, option); ok {
		return price
	}
	return c.CablePrice
}

// MeterPriceFor prices the net meter.
func (c Catalog) MeterPriceFor(option string) float64 {
	if price, ok := c.option(ComponentMeter, option); ok {
		return price
	}
	return c.MeterPrice
}

// DistributionBoxPrice prices the ACDB/DCDB pair. Boxes are priced by their
// string-count option; when neither option is listed the flat price applies.
func (c Catalog) DistributionBoxPrice(acdb, dcdb string) float64 {
	acdbPrice, acdbOK := c.option(ComponentACDB, acdb)
	dcdbPrice, dcdbOK := c.option(ComponentDCDB, dcdb)
	if !acdbOK && !dcdbOK {
		return c.ACDBDCDBPrice
	}
	return acdbPrice + dcdbPrice
}
