package pricing

import "math"

// LineItem is the price of one component in a breakdown.
type LineItem struct {
	Component Component `json:"component"`
	Label     string    `json:"label,omitempty"`
	Amount    float64   `json:"amount"`
}

// Breakdown is the locally computed price of a product selection.
type Breakdown struct {
	Lines              []LineItem `json:"lines"`
	Subtotal           float64    `json:"subtotal"`
	CentralSubsidy     float64    `json:"centralSubsidy"`
	StateSubsidy       float64    `json:"stateSubsidy"`
	TotalSubsidy       float64    `json:"totalSubsidy"`
	AmountAfterSubsidy float64    `json:"amountAfterSubsidy"`
	Discount           float64    `json:"discount"`
	DiscountAmount     float64    `json:"discountAmount"`
	FinalAmount        float64    `json:"finalAmount"`
	TotalAmount        float64    `json:"totalAmount"`
}

// Fields exposes the breakdown as a nested pricing object.
func (b Breakdown) Fields() Fields {
	return Fields{
		FieldSubtotal:           b.Subtotal,
		FieldCentralSubsidy:     b.CentralSubsidy,
		FieldStateSubsidy:       b.StateSubsidy,
		FieldTotalSubsidy:       b.TotalSubsidy,
		FieldAmountAfterSubsidy: b.AmountAfterSubsidy,
		FieldDiscountAmount:     b.DiscountAmount,
		FieldFinalAmount:        b.FinalAmount,
		FieldTotalAmount:        b.TotalAmount,
	}
}

// Subtotal sums the component prices of a selection.
func Subtotal(p ProductSelection, c Catalog) float64 {
	var total float64
	for _, line := range componentLines(p, c) {
		total += line.Amount
	}
	return round2(total)
}

// Compute prices a selection and applies subsidies then the discount percent.
// Subsidies are taken from the selection; a discount outside [0,100] is clamped.
func Compute(p ProductSelection, discount float64, c Catalog) Breakdown {
	lines := componentLines(p, c)
	var subtotal float64
	for _, line := range lines {
		subtotal += line.Amount
	}
	subtotal = round2(subtotal)

	central, _ := Number(p.CentralSubsidy)
	state, _ := Number(p.StateSubsidy)
	totalSubsidy := round2(central + state)
	final := round2(subtotal - totalSubsidy)
	discount = clampPercent(discount)
	discountAmount, total := ApplyDiscount(final, discount)

	return Breakdown{
		Lines:              lines,
		Subtotal:           subtotal,
		CentralSubsidy:     central,
		StateSubsidy:       state,
		TotalSubsidy:       totalSubsidy,
		AmountAfterSubsidy: final,
		Discount:           discount,
		DiscountAmount:     discountAmount,
		FinalAmount:        final,
		TotalAmount:        total,
	}
}

// ApplyDiscount takes discount percent off the post-subsidy amount and returns
// the discount amount and the payable total.
func ApplyDiscount(finalAmount, discount float64) (discountAmount, totalAmount float64) {
	discountAmount = round2(finalAmount * clampPercent(discount) / 100)
	totalAmount = round2(finalAmount - discountAmount)
	return discountAmount, totalAmount
}

func componentLines(p ProductSelection, c Catalog) []LineItem {
	lines := make([]LineItem, 0, 8)
	add := func(component Component, label string, amount float64) {
		lines = append(lines, LineItem{Component: component, Label: label, Amount: round2(amount)})
	}

	if p.SystemType == SystemCustomize {
		var panels float64
		for _, cp := range p.CustomPanels {
			unit := cp.Price
			if unit <= 0 {
				unit = c.PanelUnitPrice(cp.Size)
			}
			panels += unit * float64(cp.Quantity)
		}
		add(ComponentPanel, "custom", panels)
	} else {
		add(ComponentPanel, p.Panel.Size, c.PanelUnitPrice(p.Panel.Size)*float64(p.Panel.Quantity))
	}

	add(ComponentInverter, p.Inverter.Size, c.InverterPrice(p.Inverter.Size))
	add(ComponentStructure, p.Structure.Size, c.StructurePrice(p.Structure.Size))
	add(ComponentCables, p.Cables.Size, c.CablesPrice(p.Cables.Size))
	add(ComponentMeter, p.Meter.Size, c.MeterPriceFor(p.Meter.Size))
	add(ComponentACDB, p.ACDB.Size, c.DistributionBoxPrice(p.ACDB.Size, p.DCDB.Size))

	if p.Battery != nil {
		qty := p.Battery.Quantity
		if qty <= 0 {
			qty = 1
		}
		add(ComponentBattery, p.Battery.Capacity, c.BatteryUnitPrice(p.Battery.Capacity)*float64(qty))
	}
	return lines
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// RoundDiscount rounds a discount percent to the two decimals it is stored with.
func RoundDiscount(discount float64) float64 {
	return round2(clampPercent(discount))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
