// Package payments derives installment schedules for approved quotations.
// Plans are computed on read and never stored.
package payments

import "math"

type Phase struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Percent float64 `json:"percent"`
	Amount  float64 `json:"amount"`
}

type Plan struct {
	QuotationID string  `json:"quotationId"`
	TotalAmount float64 `json:"totalAmount"`
	Phases      []Phase `json:"phases"`
}

// Split is one installment share of a plan template.
type Split struct {
	Key     string
	Label   string
	Percent float64
}

// DefaultSplits is the advance, material dispatch and commissioning schedule.
var DefaultSplits = []Split{
	{Key: "advance", Label: "Advance", Percent: 40},
	{Key: "material-dispatch", Label: "Material dispatch", Percent: 40},
	{Key: "commissioning", Label: "Commissioning", Percent: 20},
}

// Build splits total across splits. Each amount is rounded to paise and the
// last phase absorbs the remainder so the phases always sum to total.
func Build(quotationID string, total float64, splits []Split) Plan {
	plan := Plan{QuotationID: quotationID, TotalAmount: total, Phases: make([]Phase, 0, len(splits))}
	var allocated float64
	for i, s := range splits {
		amount := round2(total * s.Percent / 100)
		if i == len(splits)-1 {
			amount = round2(total - allocated)
		}
		allocated += amount
		plan.Phases = append(plan.Phases, Phase{Key: s.Key, Label: s.Label, Percent: s.Percent, Amount: amount})
	}
	return plan
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
