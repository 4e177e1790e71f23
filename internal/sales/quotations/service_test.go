package quotations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/solarquote/solarquote/internal/accounts"
	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/pricing"
	"github.com/solarquote/solarquote/internal/rbac"
	"github.com/solarquote/solarquote/internal/sales/customers"
	"github.com/solarquote/solarquote/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	seq        int
	quotations map[string]Quotation
	history    []shared.ApprovalLog
	failCreate error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{seq: 1000, quotations: make(map[string]Quotation)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) NextID(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return "QT-" + strconv.Itoa(m.seq), nil
}

func (m *memoryRepo) Create(_ context.Context, q Quotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	m.quotations[q.ID] = q
	return nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (*Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &q, nil
}

func (m *memoryRepo) List(_ context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Quotation, 0)
	for _, q := range m.quotations {
		if req.DealerID != "" && q.DealerID != req.DealerID {
			continue
		}
		if req.Status != "" && q.Status != req.Status {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if req.Limit > 0 {
		if req.Offset >= len(out) {
			return []Quotation{}, total, nil
		}
		end := req.Offset + req.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[req.Offset:end]
	}
	return out, total, nil
}

func (m *memoryRepo) Save(_ context.Context, q Quotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quotations[q.ID]; !ok {
		return ErrNotFound
	}
	m.quotations[q.ID] = q
	return nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id string, status QuotationStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotations[id]
	if !ok {
		return ErrNotFound
	}
	q.Status, q.UpdatedAt = status, at
	m.quotations[id] = q
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quotations[id]; !ok {
		return ErrNotFound
	}
	delete(m.quotations, id)
	return nil
}

func (m *memoryRepo) RecordHistory(_ context.Context, entry shared.ApprovalLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.Module = historyModule
	m.history = append(m.history, entry)
	return nil
}

func (m *memoryRepo) History(_ context.Context, id string) ([]shared.ApprovalLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []shared.ApprovalLog
	for _, h := range m.history {
		if h.RefID == id {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memoryRepo) CountPastValidity(_ context.Context, status QuotationStatus, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, q := range m.quotations {
		if q.Status == status && q.Expired(now) {
			n++
		}
	}
	return n, nil
}

type customerStub struct {
	mu      sync.Mutex
	byKey   map[string]*customers.Customer
	created int
}

func newCustomerStub() *customerStub {
	return &customerStub{byKey: make(map[string]*customers.Customer)}
}

func (c *customerStub) FindOrCreate(_ context.Context, dealerID string, input customers.CustomerInput) (*customers.Customer, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := dealerID + "/" + input.Mobile
	if existing, ok := c.byKey[key]; ok {
		existing.FirstName = input.FirstName
		return existing, false, nil
	}
	c.created++
	customer := &customers.Customer{
		ID: "cust-" + strconv.Itoa(c.created), DealerID: dealerID,
		FirstName: input.FirstName, LastName: input.LastName, Mobile: input.Mobile, Address: input.Address,
	}
	c.byKey[key] = customer
	return customer, true, nil
}

type catalogStub struct{}

func (catalogStub) Current(context.Context) (pricing.Catalog, error) {
	return pricing.DefaultCatalog(), nil
}

type accountStub map[string]shared.Role

func (a accountStub) Get(_ context.Context, id string) (*accounts.Account, error) {
	role, ok := a[id]
	if !ok {
		return nil, httpx.NewError(httpx.CodeAccountNotFound, "account not found")
	}
	return &accounts.Account{ID: id, Role: role, IsActive: true}, nil
}

type idempotencyStub struct {
	mu    sync.Mutex
	refs  map[string]string
	claim map[string]bool
}

func newIdempotencyStub() *idempotencyStub {
	return &idempotencyStub{refs: make(map[string]string), claim: make(map[string]bool)}
}

func (s *idempotencyStub) Claim(_ context.Context, key, _ string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.refs[key]; ok {
		return ref, false, nil
	}
	if s.claim[key] {
		return "", false, shared.ErrIdempotencyInFlight
	}
	s.claim[key] = true
	return "", true, nil
}

func (s *idempotencyStub) Complete(_ context.Context, key, _, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claim, key)
	s.refs[key] = ref
	return nil
}

func (s *idempotencyStub) Release(_ context.Context, key, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claim, key)
	return nil
}

type metricsStub struct {
	created  int
	failures []string
}

func (m *metricsStub) QuotationCreated()            { m.created++ }
func (m *metricsStub) PricingFailure(code string) { m.failures = append(m.failures, code) }

type auditStub struct{ actions []string }

func (a *auditStub) Record(_ context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

var (
	admin   = shared.Principal{AccountID: "admin-1", Role: shared.RoleAdmin}
	dealerA = shared.Principal{AccountID: "dealer-a", Role: shared.RoleDealer}
	dealerB = shared.Principal{AccountID: "dealer-b", Role: shared.RoleDealer}
	manager = shared.Principal{AccountID: "am-1", Role: shared.RoleAccountManager}
	visitor = shared.Principal{AccountID: "visitor-1", Role: shared.RoleVisitor}
)

type fixture struct {
	svc         *Service
	repo        *memoryRepo
	customers   *customerStub
	idempotency *idempotencyStub
	metrics     *metricsStub
	audit       *auditStub
}

func newFixture() fixture {
	f := fixture{
		repo:        newMemoryRepo(),
		customers:   newCustomerStub(),
		idempotency: newIdempotencyStub(),
		metrics:     &metricsStub{},
		audit:       &auditStub{},
	}
	f.svc = NewService(Deps{
		Repo:        f.repo,
		Customers:   f.customers,
		Catalog:     catalogStub{},
		Accounts:    accountStub{"dealer-a": shared.RoleDealer, "dealer-b": shared.RoleDealer, "visitor-1": shared.RoleVisitor},
		Idempotency: f.idempotency,
		Audit:       f.audit,
		Metrics:     f.metrics,
	})
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return f
}

func residentialDCR() pricing.ProductSelection {
	return pricing.ProductSelection{
		SystemType:     pricing.SystemDCR,
		Panel:          pricing.Item{Brand: "Adani", Size: "545W", Quantity: 10},
		Inverter:       pricing.Item{Brand: "Growatt", Size: "5kW"},
		Structure:      pricing.Item{Brand: "GI", Size: "5kW"},
		CentralSubsidy: 78000.0,
		StateSubsidy:   10000.0,
	}
}

func createRequest(mobile string) CreateQuotationRequest {
	return CreateQuotationRequest{
		Customer: customers.CustomerInput{
			FirstName: "Ravi", LastName: "Kumar", Mobile: mobile,
			Address: shared.Address{Street: "12 MG Road", City: "Pune", State: "MH", Pincode: "411001"},
		},
		Products: residentialDCR(),
		Discount: 10,
		Pricing:  confirmedPricing(residentialDCR(), 10),
	}
}

// confirmedPricing mirrors the client echoing the preview from the quote step.
func confirmedPricing(p pricing.ProductSelection, discount float64) map[string]any {
	return pricing.Compute(p, discount, pricing.DefaultCatalog()).Fields()
}

func TestCreateComputesResidentialPackage(t *testing.T) {
	f := newFixture()

	q, replayed, err := f.svc.Create(context.Background(), dealerA, createRequest("9876543210"), "")
	require.NoError(t, err)
	assert.False(t, replayed)

	assert.Equal(t, "QT-1001", q.ID)
	assert.Equal(t, 236250.0, q.Subtotal)
	assert.Equal(t, 88000.0, q.TotalSubsidy)
	assert.Equal(t, 148250.0, q.FinalAmount)
	assert.Equal(t, 148250.0, q.AmountAfterSubsidy)
	assert.Equal(t, 14825.0, q.DiscountAmount)
	assert.Equal(t, 133425.0, q.TotalAmount)
	assert.Equal(t, QuotationStatusPending, q.Status)
	assert.Equal(t, dealerA.AccountID, q.DealerID)
	assert.Equal(t, q.CreatedAt.Add(DefaultValidity), q.ValidUntil)

	history, err := f.svc.History(context.Background(), dealerA, q.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "pending", history[0].ToStatus)
	assert.Equal(t, 1, f.metrics.created)
	assert.Equal(t, []string{"quotation.create"}, f.audit.actions)
}

func TestCreateRequestFieldsWinOverNestedPricing(t *testing.T) {
	f := newFixture()
	req := createRequest("9876543210")
	req.Subtotal = "250000"
	req.TotalAmount = json.Number("200000")
	req.FinalAmount = 210000.0

	q, _, err := f.svc.Create(context.Background(), dealerA, req, "")
	require.NoError(t, err)
	assert.Equal(t, 250000.0, q.Subtotal)
	assert.Equal(t, 200000.0, q.TotalAmount)
	assert.Equal(t, 210000.0, q.FinalAmount)
	assert.Equal(t, "request.subtotal", q.PricingSources["subtotal"])
}

func TestCreatePricingFailureIsCounted(t *testing.T) {
	f := newFixture()
	req := createRequest("9876543210")
	req.Pricing = map[string]any{"subtotal": 1000.0}

	_, _, err := f.svc.Create(context.Background(), dealerA, req, "")
	require.Error(t, err)
	assert.True(t, httpx.HasCode(err, httpx.CodeTotalAmountMissing))
	assert.Equal(t, []string{httpx.CodeTotalAmountMissing}, f.metrics.failures)
	assert.Empty(t, f.repo.quotations)
	assert.Zero(t, f.customers.created)
}

func TestCreateProductPricesOutrankComputedSubtotal(t *testing.T) {
	f := newFixture()
	req := createRequest("9876543210")
	req.Pricing = nil
	req.Products.SystemPrice = 300000.0
	req.Products.TotalAmount = 190000.0
	req.Products.FinalAmount = 212000.0

	q, _, err := f.svc.Create(context.Background(), dealerA, req, "")
	require.NoError(t, err)
	assert.Equal(t, 300000.0, q.Subtotal)
	assert.Equal(t, "products.systemPrice", q.PricingSources["subtotal"])
	assert.Equal(t, 190000.0, q.TotalAmount)
	assert.Equal(t, "products.totalAmount", q.PricingSources["totalAmount"])
	assert.Equal(t, 212000.0, q.FinalAmount)
	assert.Equal(t, "products.finalAmount", q.PricingSources["finalAmount"])
}

func TestCreateWithoutTotalsIsRejected(t *testing.T) {
	f := newFixture()
	req := createRequest("9876543210")
	req.Pricing = nil

	_, _, err := f.svc.Create(context.Background(), dealerA, req, "")
	require.Error(t, err)
	assert.True(t, httpx.HasCode(err, httpx.CodeTotalAmountMissing))
	assert.Empty(t, f.repo.quotations)

	req.TotalAmount = 133425.0
	_, _, err = f.svc.Create(context.Background(), dealerA, req, "")
	assert.True(t, httpx.HasCode(err, httpx.CodeFinalAmountMissing))
}

func TestCreateBoundsAmountsAndRoundsDiscount(t *testing.T) {
	f := newFixture()
	req := createRequest("9876543210")
	req.Subtotal = 1e13

	_, _, err := f.svc.Create(context.Background(), dealerA, req, "")
	require.Error(t, err)
	assert.True(t, httpx.HasCode(err, httpx.CodeValidation))
	assert.Empty(t, f.repo.quotations)

	req = createRequest("9876543210")
	req.Discount = 33.333
	q, _, err := f.svc.Create(context.Background(), dealerA, req, "")
	require.NoError(t, err)
	assert.Equal(t, 33.33, q.Discount)

	discount := 12.346
	edited, err := f.svc.AdminEdit(context.Background(), admin, q.ID, AdminEditRequest{Discount: &discount})
	require.NoError(t, err)
	assert.Equal(t, 12.35, edited.Discount)
	wantAmount, wantTotal := pricing.ApplyDiscount(edited.FinalAmount, 12.35)
	assert.Equal(t, wantAmount, edited.DiscountAmount)
	assert.Equal(t, wantTotal, edited.TotalAmount)

	huge := 1e13
	_, err = f.svc.AdminEdit(context.Background(), admin, q.ID, AdminEditRequest{TotalAmount: &huge})
	assert.True(t, httpx.HasCode(err, httpx.CodeValidation))
}

func TestCreateReusesCustomerByMobile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, _, err := f.svc.Create(ctx, dealerA, createRequest("9876543210"), "")
	require.NoError(t, err)
	second, _, err := f.svc.Create(ctx, dealerA, createRequest("9876543210"), "")
	require.NoError(t, err)
	other, _, err := f.svc.Create(ctx, dealerB, createRequest("9876543210"), "")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.CustomerID, second.CustomerID)
	assert.NotEqual(t, first.CustomerID, other.CustomerID)
	assert.Equal(t, 2, f.customers.created)
}

func TestCreateValidatesProducts(t *testing.T) {
	f := newFixture()
	req := createRequest("9876543210")
	req.Products.SystemType = pricing.SystemHybrid
	req.Products.Inverter.Size = ""
	req.Discount = 120

	_, _, err := f.svc.Create(context.Background(), dealerA, req, "")
	require.Error(t, err)
	assert.True(t, httpx.HasCode(err, httpx.CodeValidation))
	details, ok := httpx.AsError(err).Details.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "products.battery")
	assert.Contains(t, details, "products.inverter.size")
	assert.Contains(t, details, "discount")
}

func TestCreateCustomizeNeedsCustomPanels(t *testing.T) {
	f := newFixture()
	req := createRequest("9876543210")
	req.Products.SystemType = pricing.SystemCustomize
	req.Products.Panel = pricing.Item{}

	_, _, err := f.svc.Create(context.Background(), dealerA, req, "")
	require.Error(t, err)
	details := httpx.AsError(err).Details.(map[string]string)
	assert.Contains(t, details, "products.customPanels")
	assert.NotContains(t, details, "products.panel.size")
}

func TestCreateIdempotencyKeyReplays(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, replayed, err := f.svc.Create(ctx, dealerA, createRequest("9876543210"), "key-1")
	require.NoError(t, err)
	assert.False(t, replayed)

	again, replayed, err := f.svc.Create(ctx, dealerA, createRequest("9876543210"), "key-1")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, f.repo.quotations, 1)
	assert.Equal(t, 1, f.metrics.created)
}

func TestCreateReleasesKeyOnFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.repo.failCreate = errors.New("insert failed")

	_, _, err := f.svc.Create(ctx, dealerA, createRequest("9876543210"), "key-2")
	require.Error(t, err)
	assert.False(t, f.idempotency.claim["key-2"])

	f.repo.failCreate = nil
	q, replayed, err := f.svc.Create(ctx, dealerA, createRequest("9876543210"), "key-2")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotEmpty(t, q.ID)
}

func TestCreateInFlightKeyIsDuplicate(t *testing.T) {
	f := newFixture()
	f.idempotency.claim["busy"] = true

	_, _, err := f.svc.Create(context.Background(), dealerA, createRequest("9876543210"), "busy")
	require.Error(t, err)
	assert.True(t, httpx.HasCode(err, httpx.CodeDuplicate))
}

func TestAdminCreatesOnBehalfOfDealer(t *testing.T) {
	f := newFixture()
	req := createRequest("9876543210")
	req.DealerID = "dealer-b"

	q, _, err := f.svc.Create(context.Background(), admin, req, "")
	require.NoError(t, err)
	assert.Equal(t, "dealer-b", q.DealerID)

	req.DealerID = "visitor-1"
	_, _, err = f.svc.Create(context.Background(), admin, req, "")
	require.Error(t, err)
	assert.True(t, httpx.HasCode(err, httpx.CodeValidation))

	req.DealerID = "dealer-b"
	q, _, err = f.svc.Create(context.Background(), dealerA, req, "")
	require.NoError(t, err)
	assert.Equal(t, dealerA.AccountID, q.DealerID)
}

func TestVisibilityByRole(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	own, _, err := f.svc.Create(ctx, dealerA, createRequest("9876543210"), "")
	require.NoError(t, err)
	approved, _, err := f.svc.Create(ctx, dealerB, createRequest("9123456780"), "")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, admin, approved.ID, UpdateStatusRequest{Status: QuotationStatusApproved})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, dealerA, own.ID)
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, dealerA, approved.ID)
	assert.True(t, httpx.HasCode(err, httpx.CodeQuotationNotFound))
	_, err = f.svc.Get(ctx, manager, own.ID)
	assert.True(t, httpx.HasCode(err, httpx.CodeQuotationNotFound))
	_, err = f.svc.Get(ctx, manager, approved.ID)
	require.NoError(t, err)

	page := shared.PageRequest{Page: 1, PerPage: 10}
	list, pagination, err := f.svc.List(ctx, dealerA, ListQuotationsRequest{}, page)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, own.ID, list[0].ID)
	assert.Equal(t, 1, pagination.Total)

	list, _, err = f.svc.List(ctx, manager, ListQuotationsRequest{Status: QuotationStatusPending}, page)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, approved.ID, list[0].ID)

	list, _, err = f.svc.List(ctx, admin, ListQuotationsRequest{}, page)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, _, err = f.svc.List(ctx, visitor, ListQuotationsRequest{}, page)
	assert.True(t, httpx.HasCode(err, httpx.CodeForbidden))
}

func TestUpdateStatusIsPermissiveAndRecorded(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	q, _, err := f.svc.Create(ctx, dealerA, createRequest("9876543210"), "")
	require.NoError(t, err)

	for _, status := range []QuotationStatus{QuotationStatusCompleted, QuotationStatusPending, QuotationStatusRejected, QuotationStatusApproved} {
		updated, err := f.svc.UpdateStatus(ctx, admin, q.ID, UpdateStatusRequest{Status: status, Note: "review"})
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}

	history, err := f.svc.History(ctx, admin, q.ID)
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, "rejected", history[4].FromStatus)
	assert.Equal(t, "approved", history[4].ToStatus)
	assert.Equal(t, admin.AccountID, history[4].ActorID)

	_, err = f.svc.UpdateStatus(ctx, admin, q.ID, UpdateStatusRequest{Status: "archived"})
	assert.True(t, httpx.HasCode(err, httpx.CodeValidation))
	_, err = f.svc.UpdateStatus(ctx, admin, "QT-9", UpdateStatusRequest{Status: QuotationStatusApproved})
	assert.True(t, httpx.HasCode(err, httpx.CodeQuotationNotFound))
}

func TestAdminEditDiscountRecomputesTotal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	q, _, err := f.svc.Create(ctx, dealerA, createRequest("9876543210"), "")
	require.NoError(t, err)

	discount := 20.0
	edited, err := f.svc.AdminEdit(ctx, admin, q.ID, AdminEditRequest{Discount: &discount})
	require.NoError(t, err)
	assert.Equal(t, 148250.0, edited.FinalAmount)
	assert.Equal(t, 29650.0, edited.DiscountAmount)
	assert.Equal(t, 118600.0, edited.TotalAmount)

	total := 120000.0
	dealer := "dealer-b"
	edited, err = f.svc.AdminEdit(ctx, admin, q.ID, AdminEditRequest{TotalAmount: &total, DealerID: &dealer})
	require.NoError(t, err)
	assert.Equal(t, 120000.0, edited.TotalAmount)
	assert.Equal(t, 20.0, edited.Discount)
	assert.Equal(t, "dealer-b", edited.DealerID)

	central := 50000.0
	edited, err = f.svc.AdminEdit(ctx, admin, q.ID, AdminEditRequest{CentralSubsidy: &central})
	require.NoError(t, err)
	assert.Equal(t, 60000.0, edited.TotalSubsidy)

	bad := 101.0
	_, err = f.svc.AdminEdit(ctx, admin, q.ID, AdminEditRequest{Discount: &bad})
	assert.True(t, httpx.HasCode(err, httpx.CodeValidation))
}

func TestDeleteAndCountPastValidity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	q, _, err := f.svc.Create(ctx, dealerA, createRequest("9876543210"), "")
	require.NoError(t, err)

	n, err := f.svc.CountPastValidity(ctx, QuotationStatusPending)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.svc.now = func() time.Time { return time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC) }
	n, err = f.svc.CountPastValidity(ctx, QuotationStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, f.svc.Delete(ctx, admin, q.ID))
	err = f.svc.Delete(ctx, admin, q.ID)
	assert.True(t, httpx.HasCode(err, httpx.CodeQuotationNotFound))
}

func TestQuotePreviewsWithoutPersisting(t *testing.T) {
	f := newFixture()
	b, err := f.svc.Quote(context.Background(), QuoteRequest{Products: residentialDCR(), Discount: 10})
	require.NoError(t, err)
	assert.Equal(t, 133425.0, b.TotalAmount)
	assert.Empty(t, f.repo.quotations)
}

func newRouter(f fixture) http.Handler {
	h := NewHandler(nil, f.svc, rbac.Middleware{Service: rbac.NewService(nil)})
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func do(t *testing.T, router http.Handler, method, target string, actor shared.Principal, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), actor))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandlerCreateAndReplay(t *testing.T) {
	f := newFixture()
	router := newRouter(f)
	header := map[string]string{IdempotencyHeader: "abc"}

	rr := do(t, router, http.MethodPost, "/quotations", dealerA, createRequest("9876543210"), header)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created struct {
		Success bool      `json:"success"`
		Data    Quotation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.True(t, created.Success)
	assert.Equal(t, 133425.0, created.Data.TotalAmount)

	rr = do(t, router, http.MethodPost, "/quotations", dealerA, createRequest("9876543210"), header)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, router, http.MethodPost, "/quotations", visitor, createRequest("9876543210"), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandlerRejectsMalformedAndUnauthorizedEdits(t *testing.T) {
	f := newFixture()
	router := newRouter(f)
	q, _, err := f.svc.Create(context.Background(), dealerA, createRequest("9876543210"), "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/quotations", strings.NewReader(`{"customer":`))
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), dealerA))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), httpx.CodeMalformedBody)

	rr = do(t, router, http.MethodPut, "/quotations/"+q.ID+"/status", dealerA, UpdateStatusRequest{Status: QuotationStatusApproved}, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(t, router, http.MethodPut, "/quotations/"+q.ID+"/status", admin, UpdateStatusRequest{Status: QuotationStatusApproved}, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandlerExportWritesWorkbook(t *testing.T) {
	f := newFixture()
	router := newRouter(f)
	ctx := context.Background()
	q, _, err := f.svc.Create(ctx, dealerA, createRequest("9876543210"), "")
	require.NoError(t, err)
	_, _, err = f.svc.Create(ctx, dealerA, createRequest("9123456780"), "")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, admin, q.ID, UpdateStatusRequest{Status: QuotationStatusApproved})
	require.NoError(t, err)

	rr := do(t, router, http.MethodGet, "/quotations/export.xlsx", manager, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, xlsxContentType, rr.Header().Get("Content-Type"))

	book, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	rows, err := book.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Quotation", rows[0][0])
	assert.Equal(t, q.ID, rows[1][0])

	rr = do(t, router, http.MethodGet, "/quotations/export.xlsx", dealerA, nil, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
