package quotations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/solarquote/solarquote/internal/accounts"
	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/pricing"
	"github.com/solarquote/solarquote/internal/sales/customers"
	"github.com/solarquote/solarquote/internal/shared"
)

const idempotencyModule = "quotations"

// DefaultValidity is how long a quotation is shown as valid.
const DefaultValidity = 5 * 24 * time.Hour

type CustomerResolver interface {
	FindOrCreate(ctx context.Context, dealerID string, input customers.CustomerInput) (*customers.Customer, bool, error)
}

type CatalogSource interface {
	Current(ctx context.Context) (pricing.Catalog, error)
}

type AccountLookup interface {
	Get(ctx context.Context, id string) (*accounts.Account, error)
}

type IdempotencyStore interface {
	Claim(ctx context.Context, key, module string) (string, bool, error)
	Complete(ctx context.Context, key, module, ref string) error
	Release(ctx context.Context, key, module string) error
}

type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Metrics interface {
	QuotationCreated()
	PricingFailure(code string)
}

// Deps groups the collaborators of Service. Idempotency, Audit and Metrics
// are optional.
type Deps struct {
	Repo        Repository
	Customers   CustomerResolver
	Catalog     CatalogSource
	Accounts    AccountLookup
	Idempotency IdempotencyStore
	Audit       AuditRecorder
	Metrics     Metrics
	Validity    time.Duration
	Logger      *slog.Logger
}

type Service struct {
	repo        Repository
	customers   CustomerResolver
	catalog     CatalogSource
	accounts    AccountLookup
	idempotency IdempotencyStore
	audit       AuditRecorder
	metrics     Metrics
	validity    time.Duration
	validate    *validator.Validate
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Validity <= 0 {
		deps.Validity = DefaultValidity
	}
	return &Service{
		repo:        deps.Repo,
		customers:   deps.Customers,
		catalog:     deps.Catalog,
		accounts:    deps.Accounts,
		idempotency: deps.Idempotency,
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		validity:    deps.Validity,
		validate:    httpx.NewValidator(),
		logger:      deps.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Quote prices a selection without persisting anything.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (pricing.Breakdown, error) {
	if err := s.validateRequest(req, req.Products); err != nil {
		return pricing.Breakdown{}, err
	}
	catalog, err := s.catalog.Current(ctx)
	if err != nil {
		return pricing.Breakdown{}, fmt.Errorf("load catalog: %w", err)
	}
	return pricing.Compute(req.Products, pricing.RoundDiscount(req.Discount), catalog), nil
}

// Create validates, prices and stores a quotation. When idempotencyKey was
// already used successfully the stored quotation is returned with
// replayed=true.
func (s *Service) Create(ctx context.Context, actor shared.Principal, req CreateQuotationRequest, idempotencyKey string) (q *Quotation, replayed bool, err error) {
	if err := s.validateRequest(req, req.Products); err != nil {
		return nil, false, err
	}
	dealerID, err := s.owningDealer(ctx, actor, req.DealerID)
	if err != nil {
		return nil, false, err
	}

	catalog, err := s.catalog.Current(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load catalog: %w", err)
	}
	req.Discount = pricing.RoundDiscount(req.Discount)
	resolved, err := pricing.Resolve(pricing.Input{
		Request:          req.requestFields(),
		Pricing:          pricing.Fields(req.Pricing),
		Products:         req.Products.PriceFields(),
		ComputedSubtotal: pricing.Subtotal(req.Products, catalog),
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.PricingFailure(httpx.AsError(err).Code)
		}
		return nil, false, err
	}

	if idempotencyKey != "" && s.idempotency != nil {
		ref, claimed, claimErr := s.idempotency.Claim(ctx, idempotencyKey, idempotencyModule)
		if claimErr != nil {
			if errors.Is(claimErr, shared.ErrIdempotencyInFlight) {
				return nil, false, httpx.NewError(httpx.CodeDuplicate, "a request with this Idempotency-Key is still being processed")
			}
			return nil, false, claimErr
		}
		if !claimed {
			existing, getErr := s.repo.Get(ctx, ref)
			if getErr != nil {
				return nil, false, mapError(getErr)
			}
			return existing, true, nil
		}
		defer func() {
			if err != nil {
				if releaseErr := s.idempotency.Release(context.WithoutCancel(ctx), idempotencyKey, idempotencyModule); releaseErr != nil {
					s.logger.Warn("release idempotency key", slog.Any("error", releaseErr))
				}
			}
		}()
	}

	customer, _, err := s.customers.FindOrCreate(ctx, dealerID, req.Customer)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	quotation := Quotation{
		CustomerID: customer.ID,
		Customer:   customer,
		Products:   req.Products,
		Discount:   req.Discount,
		Status:     QuotationStatusPending,
		DealerID:   dealerID,
		CreatedAt:  now,
		ValidUntil: now.Add(s.validity),
		UpdatedAt:  now,
	}
	quotation.applyResolved(resolved)

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.NextID(ctx)
		if err != nil {
			return err
		}
		quotation.ID = id
		if err := repo.Create(ctx, quotation); err != nil {
			return err
		}
		return repo.RecordHistory(ctx, shared.ApprovalLog{
			RefID: id, ActorID: actor.AccountID, ToStatus: string(QuotationStatusPending), Note: "created", At: now,
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("create quotation: %w", err)
	}

	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.Complete(ctx, idempotencyKey, idempotencyModule, quotation.ID); err != nil {
			s.logger.Warn("complete idempotency key", slog.String("quotation_id", quotation.ID), slog.Any("error", err))
		}
	}
	if s.metrics != nil {
		s.metrics.QuotationCreated()
	}
	s.record(ctx, actor, "quotation.create", quotation.ID, map[string]any{
		"dealerId": dealerID, "totalAmount": quotation.TotalAmount, "sources": quotation.PricingSources,
	})
	return &quotation, false, nil
}

func (s *Service) owningDealer(ctx context.Context, actor shared.Principal, requested string) (string, error) {
	if !actor.Is(shared.RoleAdmin) || requested == "" || requested == actor.AccountID {
		return actor.AccountID, nil
	}
	if err := s.checkDealer(ctx, requested); err != nil {
		return "", err
	}
	return requested, nil
}

func (s *Service) checkDealer(ctx context.Context, id string) error {
	if s.accounts == nil {
		return nil
	}
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return err
	}
	if account.Role != shared.RoleDealer && account.Role != shared.RoleAdmin {
		return httpx.Validation("request validation failed", map[string]string{"dealerId": "must reference a dealer"})
	}
	return nil
}

// Get returns a quotation visible to actor. Dealers see their own,
// account managers see approved ones and admins see everything.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id string) (*Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	if !visibleTo(actor, *q) {
		return nil, errQuotationNotFound
	}
	return q, nil
}

// DealerOf returns the dealer currently owning quotation id.
func (s *Service) DealerOf(ctx context.Context, id string) (string, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", mapError(err)
	}
	return q.DealerID, nil
}

func visibleTo(actor shared.Principal, q Quotation) bool {
	switch actor.Role {
	case shared.RoleAdmin:
		return true
	case shared.RoleDealer:
		return q.DealerID == actor.AccountID
	case shared.RoleAccountManager:
		return q.Status == QuotationStatusApproved
	}
	return false
}

func (s *Service) List(ctx context.Context, actor shared.Principal, filter ListQuotationsRequest, page shared.PageRequest) ([]Quotation, shared.Pagination, error) {
	filter.Limit, filter.Offset = page.Limit(), page.Offset()
	switch actor.Role {
	case shared.RoleAdmin:
	case shared.RoleDealer:
		filter.DealerID = actor.AccountID
	case shared.RoleAccountManager:
		filter.Status = QuotationStatusApproved
	default:
		return nil, shared.Pagination{}, httpx.NewError(httpx.CodeForbidden, "quotations are not available to this role")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, httpx.Validation("request validation failed", map[string]string{"status": "must be one of: pending approved rejected completed"})
	}
	quotations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return quotations, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// UpdateStatus sets any status from any status and records the change.
func (s *Service) UpdateStatus(ctx context.Context, actor shared.Principal, id string, req UpdateStatusRequest) (*Quotation, error) {
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	var updated *Quotation
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		q, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		if err := repo.UpdateStatus(ctx, id, req.Status, now); err != nil {
			return err
		}
		if err := repo.RecordHistory(ctx, shared.ApprovalLog{
			RefID: id, ActorID: actor.AccountID, FromStatus: string(q.Status), ToStatus: string(req.Status), Note: req.Note, At: now,
		}); err != nil {
			return err
		}
		q.Status, q.UpdatedAt = req.Status, now
		updated = q
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	s.record(ctx, actor, "quotation.status", id, map[string]any{"status": req.Status})
	return updated, nil
}

// AdminEdit overwrites the supplied fields. Editing the discount recomputes
// discountAmount and totalAmount from finalAmount; editing amounts never
// changes the discount.
func (s *Service) AdminEdit(ctx context.Context, actor shared.Principal, id string, req AdminEditRequest) (*Quotation, error) {
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	if req.DealerID != nil {
		if err := s.checkDealer(ctx, *req.DealerID); err != nil {
			return nil, err
		}
	}

	var updated *Quotation
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		q, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		applyEdit(q, req)
		q.UpdatedAt = s.now()
		if err := repo.Save(ctx, *q); err != nil {
			return err
		}
		updated = q
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	s.record(ctx, actor, "quotation.edit", id, editMeta(req))
	return updated, nil
}

func applyEdit(q *Quotation, req AdminEditRequest) {
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&q.Subtotal, req.Subtotal)
	set(&q.CentralSubsidy, req.CentralSubsidy)
	set(&q.StateSubsidy, req.StateSubsidy)
	set(&q.FinalAmount, req.FinalAmount)
	set(&q.AmountAfterSubsidy, req.AmountAfterSubsidy)

	if req.TotalSubsidy != nil {
		q.TotalSubsidy = *req.TotalSubsidy
	} else if req.CentralSubsidy != nil || req.StateSubsidy != nil {
		q.TotalSubsidy = q.CentralSubsidy + q.StateSubsidy
	}

	if req.Discount != nil {
		q.Discount = pricing.RoundDiscount(*req.Discount)
		q.DiscountAmount, q.TotalAmount = pricing.ApplyDiscount(q.FinalAmount, q.Discount)
	}
	set(&q.DiscountAmount, req.DiscountAmount)
	set(&q.TotalAmount, req.TotalAmount)

	if req.DealerID != nil {
		q.DealerID = *req.DealerID
	}
}

func editMeta(req AdminEditRequest) map[string]any {
	meta := make(map[string]any)
	add := func(name string, v *float64) {
		if v != nil {
			meta[name] = *v
		}
	}
	add("discount", req.Discount)
	add("subtotal", req.Subtotal)
	add("centralSubsidy", req.CentralSubsidy)
	add("stateSubsidy", req.StateSubsidy)
	add("totalSubsidy", req.TotalSubsidy)
	add("amountAfterSubsidy", req.AmountAfterSubsidy)
	add("discountAmount", req.DiscountAmount)
	add("totalAmount", req.TotalAmount)
	add("finalAmount", req.FinalAmount)
	if req.DealerID != nil {
		meta["dealerId"] = *req.DealerID
	}
	return meta
}

func (s *Service) Delete(ctx context.Context, actor shared.Principal, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapError(err)
	}
	s.record(ctx, actor, "quotation.delete", id, nil)
	return nil
}

func (s *Service) History(ctx context.Context, actor shared.Principal, id string) ([]shared.ApprovalLog, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

// CountPastValidity reports how many quotations in status have outlived
// their validity window.
func (s *Service) CountPastValidity(ctx context.Context, status QuotationStatus) (int, error) {
	return s.repo.CountPastValidity(ctx, status, s.now())
}

func (s *Service) validateRequest(req any, products pricing.ProductSelection) error {
	fields := make(map[string]string)
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		details, ok := httpx.AsError(err).Details.(map[string]string)
		if !ok {
			return err
		}
		for k, v := range details {
			fields[k] = v
		}
	}
	for k, v := range productRules(products) {
		if _, exists := fields[k]; !exists {
			fields[k] = v
		}
	}
	if len(fields) > 0 {
		return httpx.Validation("request validation failed", fields)
	}
	return nil
}

func productRules(p pricing.ProductSelection) map[string]string {
	fields := make(map[string]string)
	if p.SystemType != "" && !p.SystemType.Valid() {
		fields["products.systemType"] = "must be one of: dcr non-dcr both hybrid customize"
	}
	if p.SystemType == pricing.SystemCustomize {
		if len(p.CustomPanels) == 0 {
			fields["products.customPanels"] = "must have at least 1 entries or characters"
		}
	} else {
		if p.Panel.Size == "" {
			fields["products.panel.size"] = "is required"
		}
		if p.Panel.Quantity <= 0 {
			fields["products.panel.quantity"] = "must be greater than 0"
		}
	}
	if p.Inverter.Size == "" {
		fields["products.inverter.size"] = "is required"
	}
	if p.Structure.Size == "" {
		fields["products.structure.size"] = "is required"
	}
	if p.SystemType == pricing.SystemHybrid && p.Battery == nil {
		fields["products.battery"] = "is required for hybrid systems"
	}
	return fields
}

func (s *Service) record(ctx context.Context, actor shared.Principal, action, id string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID: actor.AccountID, Action: action, Entity: "quotation", EntityID: id, Meta: meta, At: s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

var errQuotationNotFound = httpx.NewError(httpx.CodeQuotationNotFound, "quotation not found")

func mapError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return errQuotationNotFound
	}
	return err
}
