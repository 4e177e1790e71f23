package pricing

import (
	"github.com/solarquote/solarquote/internal/platform/httpx"
)

// Field names shared by request bodies, nested pricing objects and products.
const (
	FieldSubtotal           = "subtotal"
	FieldSystemPrice        = "systemPrice"
	FieldTotalAmount        = "totalAmount"
	FieldFinalAmount        = "finalAmount"
	FieldCentralSubsidy     = "centralSubsidy"
	FieldStateSubsidy       = "stateSubsidy"
	FieldTotalSubsidy       = "totalSubsidy"
	FieldAmountAfterSubsidy = "amountAfterSubsidy"
	FieldDiscountAmount     = "discountAmount"
)

// MaxAmount is the largest monetary value a quotation column can hold.
const MaxAmount = 999_999_999_999.99

// Fields is a loosely typed bag of monetary values keyed by field name.
type Fields map[string]any

// Input gathers every source a monetary field may be resolved from.
type Input struct {
	Request          Fields
	Pricing          Fields
	Products         Fields
	ComputedSubtotal float64
}

// Candidate is one source in a precedence chain.
type Candidate struct {
	Source string
	Value  func(Input) any
}

// Predicate decides whether a numeric candidate is acceptable.
type Predicate func(float64) bool

// Positive accepts values strictly greater than zero.
func Positive(v float64) bool { return v > 0 }

// NonNegative accepts zero and positive values.
func NonNegative(v float64) bool { return v >= 0 }

// FromRequest reads a top-level request field.
func FromRequest(field string) Candidate {
	return Candidate{Source: "request." + field, Value: func(in Input) any { return in.Request[field] }}
}

// FromPricing reads a field of the nested pricing object.
func FromPricing(field string) Candidate {
	return Candidate{Source: "pricing." + field, Value: func(in Input) any { return in.Pricing[field] }}
}

// FromProducts reads a product-level field.
func FromProducts(field string) Candidate {
	return Candidate{Source: "products." + field, Value: func(in Input) any { return in.Products[field] }}
}

// Constant always yields v.
func Constant(source string, v float64) Candidate {
	return Candidate{Source: source, Value: func(Input) any { return v }}
}

// CandidateValue records what a source held during resolution.
type CandidateValue struct {
	Source string `json:"source"`
	Value  any    `json:"value"`
}

// FieldDetail names an unresolved field and every candidate inspected for it.
type FieldDetail struct {
	Field      string           `json:"field"`
	Candidates []CandidateValue `json:"candidates"`
}

// FirstValid returns the first candidate whose value is numeric and accepted.
func FirstValid(in Input, accept Predicate, chain ...Candidate) (value float64, source string, ok bool) {
	for _, c := range chain {
		v, numeric := Number(c.Value(in))
		if numeric && accept(v) {
			return v, c.Source, true
		}
	}
	return 0, "", false
}

func inspect(in Input, field string, chain []Candidate) FieldDetail {
	detail := FieldDetail{Field: field, Candidates: make([]CandidateValue, 0, len(chain))}
	for _, c := range chain {
		detail.Candidates = append(detail.Candidates, CandidateValue{Source: c.Source, Value: c.Value(in)})
	}
	return detail
}

// Resolved is the authoritative set of monetary fields for a quotation.
type Resolved struct {
	Subtotal           float64           `json:"subtotal"`
	CentralSubsidy     float64           `json:"centralSubsidy"`
	StateSubsidy       float64           `json:"stateSubsidy"`
	TotalSubsidy       float64           `json:"totalSubsidy"`
	AmountAfterSubsidy float64           `json:"amountAfterSubsidy"`
	DiscountAmount     float64           `json:"discountAmount"`
	TotalAmount        float64           `json:"totalAmount"`
	FinalAmount        float64           `json:"finalAmount"`
	Sources            map[string]string `json:"sources"`
}

func layered(field string) []Candidate {
	return []Candidate{FromRequest(field), FromPricing(field)}
}

// SubtotalChain lists the subtotal sources in precedence order.
func SubtotalChain() []Candidate {
	return append(layered(FieldSubtotal),
		FromProducts(FieldSystemPrice),
		FromProducts(FieldSubtotal),
		FromProducts(FieldTotalAmount),
		Candidate{Source: "computed.subtotal", Value: func(in Input) any { return in.ComputedSubtotal }},
	)
}

// Resolve applies the precedence chains and validates the required fields.
// Subtotal, totalAmount and finalAmount are checked in that order and the
// first failure is returned as VAL_001, VAL_002 or VAL_003.
func Resolve(in Input) (Resolved, error) {
	out := Resolved{Sources: make(map[string]string)}

	subtotalChain := SubtotalChain()
	subtotal, src, ok := FirstValid(in, Positive, subtotalChain...)
	if !ok {
		return Resolved{}, httpx.NewError(httpx.CodeSubtotalInvalid, "subtotal must be a number greater than zero").
			WithDetails([]FieldDetail{inspect(in, FieldSubtotal, subtotalChain)})
	}
	out.Subtotal, out.Sources[FieldSubtotal] = subtotal, src

	totalChain := append(layered(FieldTotalAmount), FromProducts(FieldTotalAmount))
	total, src, ok := FirstValid(in, NonNegative, totalChain...)
	if !ok {
		return Resolved{}, httpx.NewError(httpx.CodeTotalAmountMissing, "totalAmount is required").
			WithDetails([]FieldDetail{inspect(in, FieldTotalAmount, totalChain)})
	}
	out.TotalAmount, out.Sources[FieldTotalAmount] = total, src

	finalChain := append(layered(FieldFinalAmount), FromProducts(FieldFinalAmount))
	final, src, ok := FirstValid(in, NonNegative, finalChain...)
	if !ok {
		return Resolved{}, httpx.NewError(httpx.CodeFinalAmountMissing, "finalAmount is required").
			WithDetails([]FieldDetail{inspect(in, FieldFinalAmount, finalChain)})
	}
	out.FinalAmount, out.Sources[FieldFinalAmount] = final, src

	out.CentralSubsidy, out.Sources[FieldCentralSubsidy], _ = FirstValid(in, NonNegative,
		append(layered(FieldCentralSubsidy), FromProducts(FieldCentralSubsidy), Constant("default", 0))...)
	out.StateSubsidy, out.Sources[FieldStateSubsidy], _ = FirstValid(in, NonNegative,
		append(layered(FieldStateSubsidy), FromProducts(FieldStateSubsidy), Constant("default", 0))...)
	out.TotalSubsidy, out.Sources[FieldTotalSubsidy], _ = FirstValid(in, NonNegative,
		append(layered(FieldTotalSubsidy), Constant("derived.centralPlusState", round2(out.CentralSubsidy+out.StateSubsidy)))...)
	out.AmountAfterSubsidy, out.Sources[FieldAmountAfterSubsidy], _ = FirstValid(in, NonNegative,
		append(layered(FieldAmountAfterSubsidy), Constant("derived.finalAmount", out.FinalAmount))...)
	out.DiscountAmount, out.Sources[FieldDiscountAmount], _ = FirstValid(in, NonNegative,
		append(layered(FieldDiscountAmount), Constant("default", 0))...)

	if err := out.checkBounds(); err != nil {
		return Resolved{}, err
	}
	return out, nil
}

func (r Resolved) checkBounds() error {
	fields := make(map[string]string)
	for name, v := range map[string]float64{
		FieldSubtotal:           r.Subtotal,
		FieldCentralSubsidy:     r.CentralSubsidy,
		FieldStateSubsidy:       r.StateSubsidy,
		FieldTotalSubsidy:       r.TotalSubsidy,
		FieldAmountAfterSubsidy: r.AmountAfterSubsidy,
		FieldDiscountAmount:     r.DiscountAmount,
		FieldTotalAmount:        r.TotalAmount,
		FieldFinalAmount:        r.FinalAmount,
	} {
		if v > MaxAmount {
			fields[name] = "must not exceed 999999999999.99"
		}
	}
	if len(fields) > 0 {
		return httpx.Validation("amount out of range", fields)
	}
	return nil
}
