package quotations

import (
	"github.com/solarquote/solarquote/internal/pricing"
	"github.com/solarquote/solarquote/internal/sales/customers"
)

// CreateQuotationRequest is the confirmation-step payload. Monetary fields
// may be sent at the top level, inside Pricing, or inside Products; they are
// reconciled by the pricing resolver.
type CreateQuotationRequest struct {
	Customer customers.CustomerInput  `json:"customer"`
	Products pricing.ProductSelection `json:"products"`
	Discount float64                  `json:"discount" validate:"gte=0,lte=100"`
	DealerID string                   `json:"dealerId,omitempty"`
	Pricing  map[string]any           `json:"pricing,omitempty"`

	Subtotal           any `json:"subtotal,omitempty"`
	TotalAmount        any `json:"totalAmount,omitempty"`
	FinalAmount        any `json:"finalAmount,omitempty"`
	CentralSubsidy     any `json:"centralSubsidy,omitempty"`
	StateSubsidy       any `json:"stateSubsidy,omitempty"`
	TotalSubsidy       any `json:"totalSubsidy,omitempty"`
	AmountAfterSubsidy any `json:"amountAfterSubsidy,omitempty"`
	DiscountAmount     any `json:"discountAmount,omitempty"`
}

func (r CreateQuotationRequest) requestFields() pricing.Fields {
	return pricing.Fields{
		pricing.FieldSubtotal:           r.Subtotal,
		pricing.FieldTotalAmount:        r.TotalAmount,
		pricing.FieldFinalAmount:        r.FinalAmount,
		pricing.FieldCentralSubsidy:     r.CentralSubsidy,
		pricing.FieldStateSubsidy:       r.StateSubsidy,
		pricing.FieldTotalSubsidy:       r.TotalSubsidy,
		pricing.FieldAmountAfterSubsidy: r.AmountAfterSubsidy,
		pricing.FieldDiscountAmount:     r.DiscountAmount,
	}
}

type QuoteRequest struct {
	Products pricing.ProductSelection `json:"products"`
	Discount float64                  `json:"discount" validate:"gte=0,lte=100"`
}

type UpdateStatusRequest struct {
	Status QuotationStatus `json:"status" validate:"required,oneof=pending approved rejected completed"`
	Note   string          `json:"note,omitempty" validate:"max=500"`
}

// AdminEditRequest overwrites any subset of a quotation's fields.
type AdminEditRequest struct {
	Discount           *float64 `json:"discount,omitempty" validate:"omitempty,gte=0,lte=100"`
	Subtotal           *float64 `json:"subtotal,omitempty" validate:"omitempty,gte=0,lte=999999999999.99"`
	CentralSubsidy     *float64 `json:"centralSubsidy,omitempty" validate:"omitempty,gte=0,lte=999999999999.99"`
	StateSubsidy       *float64 `json:"stateSubsidy,omitempty" validate:"omitempty,gte=0,lte=999999999999.99"`
	TotalSubsidy       *float64 `json:"totalSubsidy,omitempty" validate:"omitempty,gte=0,lte=999999999999.99"`
	AmountAfterSubsidy *float64 `json:"amountAfterSubsidy,omitempty" validate:"omitempty,gte=0,lte=999999999999.99"`
	DiscountAmount     *float64 `json:"discountAmount,omitempty" validate:"omitempty,gte=0,lte=999999999999.99"`
	TotalAmount        *float64 `json:"totalAmount,omitempty" validate:"omitempty,gte=0,lte=999999999999.99"`
	FinalAmount        *float64 `json:"finalAmount,omitempty" validate:"omitempty,gte=0,lte=999999999999.99"`
	DealerID           *string  `json:"dealerId,omitempty" validate:"omitempty,min=1"`
}

type ListQuotationsRequest struct {
	DealerID string
	Status   QuotationStatus
	Search   string
	Limit    int
	Offset   int
}
