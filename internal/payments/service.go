package payments

import (
	"context"

	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/sales/quotations"
	"github.com/solarquote/solarquote/internal/shared"
)

type QuotationLookup interface {
	Get(ctx context.Context, actor shared.Principal, id string) (*quotations.Quotation, error)
}

type Service struct {
	quotations QuotationLookup
	splits     []Split
}

func NewService(quotations QuotationLookup) *Service {
	return &Service{quotations: quotations, splits: DefaultSplits}
}

// Plan returns the installment schedule of an approved quotation.
func (s *Service) Plan(ctx context.Context, actor shared.Principal, quotationID string) (Plan, error) {
	q, err := s.quotations.Get(ctx, actor, quotationID)
	if err != nil {
		return Plan{}, err
	}
	if q.Status != quotations.QuotationStatusApproved {
		return Plan{}, httpx.NewError(httpx.CodeValidation, "payment plans exist for approved quotations only").
			WithDetails(map[string]string{"status": string(q.Status)})
	}
	return Build(q.ID, q.TotalAmount, s.splits), nil
}
