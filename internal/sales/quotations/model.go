package quotations

import (
	"time"

	"github.com/solarquote/solarquote/internal/pricing"
	"github.com/solarquote/solarquote/internal/sales/customers"
)

type QuotationStatus string

const (
	QuotationStatusPending   QuotationStatus = "pending"
	QuotationStatusApproved  QuotationStatus = "approved"
	QuotationStatusRejected  QuotationStatus = "rejected"
	QuotationStatusCompleted QuotationStatus = "completed"
)

func (s QuotationStatus) Valid() bool {
	switch s {
	case QuotationStatusPending, QuotationStatusApproved, QuotationStatusRejected, QuotationStatusCompleted:
		return true
	}
	return false
}

type Quotation struct {
	ID                 string                   `json:"id"`
	CustomerID         string                   `json:"customerId"`
	Customer           *customers.Customer      `json:"customer,omitempty"`
	Products           pricing.ProductSelection `json:"products"`
	Discount           float64                  `json:"discount"`
	Subtotal           float64                  `json:"subtotal"`
	CentralSubsidy     float64                  `json:"centralSubsidy"`
	StateSubsidy       float64                  `json:"stateSubsidy"`
	TotalSubsidy       float64                  `json:"totalSubsidy"`
	AmountAfterSubsidy float64                  `json:"amountAfterSubsidy"`
	DiscountAmount     float64                  `json:"discountAmount"`
	TotalAmount        float64                  `json:"totalAmount"`
	FinalAmount        float64                  `json:"finalAmount"`
	PricingSources     map[string]string        `json:"pricingSources,omitempty"`
	Status             QuotationStatus          `json:"status"`
	DealerID           string                   `json:"dealerId"`
	CreatedAt          time.Time                `json:"createdAt"`
	ValidUntil         time.Time                `json:"validUntil"`
	UpdatedAt          time.Time                `json:"updatedAt"`
}

// Expired reports whether the quotation is past its validity window. It is
// informational only; nothing is blocked by it.
func (q Quotation) Expired(now time.Time) bool {
	return !q.ValidUntil.IsZero() && now.After(q.ValidUntil)
}

func (q *Quotation) applyResolved(r pricing.Resolved) {
	q.Subtotal = r.Subtotal
	q.CentralSubsidy = r.CentralSubsidy
	q.StateSubsidy = r.StateSubsidy
	q.TotalSubsidy = r.TotalSubsidy
	q.AmountAfterSubsidy = r.AmountAfterSubsidy
	q.DiscountAmount = r.DiscountAmount
	q.TotalAmount = r.TotalAmount
	q.FinalAmount = r.FinalAmount
	q.PricingSources = r.Sources
}
