package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/shared"
)

type Service struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: httpx.NewValidator(), now: func() time.Time { return time.Now().UTC() }}
}

// Validate checks a customer block without touching storage.
func (s *Service) Validate(input CustomerInput) error {
	return httpx.ValidateStruct(s.validate, input)
}

// FindOrCreate reuses the dealer's customer with the same mobile number,
// refreshing its details, or creates a new one.
func (s *Service) FindOrCreate(ctx context.Context, dealerID string, input CustomerInput) (*Customer, bool, error) {
	if err := s.Validate(input); err != nil {
		return nil, false, err
	}
	now := s.now()
	customer, created, err := s.repo.Upsert(ctx, Customer{
		ID:        uuid.NewString(),
		DealerID:  dealerID,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Mobile:    input.Mobile,
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Address:   input.Address,
		CreatedAt: now,
	})
	if err != nil {
		return nil, false, err
	}
	return customer, created, nil
}

func (s *Service) Get(ctx context.Context, actor shared.Principal, id string) (*Customer, error) {
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	if !actor.Is(shared.RoleAdmin) && customer.DealerID != actor.AccountID {
		return nil, errCustomerNotFound
	}
	return customer, nil
}

func (s *Service) List(ctx context.Context, actor shared.Principal, search string, page shared.PageRequest) ([]Customer, shared.Pagination, error) {
	req := ListCustomersRequest{Search: strings.TrimSpace(search), Limit: page.Limit(), Offset: page.Offset()}
	if !actor.Is(shared.RoleAdmin) {
		req.DealerID = actor.AccountID
	}
	customers, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return customers, shared.NewPagination(page.Page, page.PerPage, total), nil
}

func (s *Service) Update(ctx context.Context, actor shared.Principal, id string, req UpdateCustomerRequest) (*Customer, error) {
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Mobile != nil {
		updates["mobile"] = *req.Mobile
	}
	if req.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Address != nil {
		updates["street"] = req.Address.Street
		updates["city"] = req.Address.City
		updates["state"] = req.Address.State
		updates["pincode"] = req.Address.Pincode
	}
	if len(updates) == 0 {
		return s.Get(ctx, actor, id)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Update(ctx, id, updates)
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, httpx.NewError(httpx.CodeDuplicate, "another customer already uses this mobile number")
		}
		if errors.Is(err, ErrNotFound) {
			return nil, errCustomerNotFound
		}
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return s.Get(ctx, actor, id)
}

var errCustomerNotFound = httpx.NewError(httpx.CodeCustomerNotFound, "customer not found")

func mapError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return errCustomerNotFound
	}
	return err
}
