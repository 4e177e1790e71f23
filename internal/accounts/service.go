package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/shared"
)

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SessionRevoker drops every live session of an account.
type SessionRevoker interface {
	DestroyAll(ctx context.Context, accountID string) error
}

// Service owns account lifecycle and credential checks.
type Service struct {
	repo     Repository
	audit    AuditRecorder
	sessions SessionRevoker
	validate *validator.Validate
	logger   *slog.Logger
	cost     int
	now      func() time.Time
}

// NewService constructs the account service.
func NewService(repo Repository, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		validate: httpx.NewValidator(),
		logger:   logger,
		cost:     bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithSessions makes deactivation revoke the account's sessions.
func (s *Service) WithSessions(sessions SessionRevoker) *Service {
	s.sessions = sessions
	return s
}

func (s *Service) CreateDealer(ctx context.Context, actor shared.Principal, req CreateDealerRequest) (*Account, error) {
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	role := shared.RoleDealer
	if req.Admin {
		role = shared.RoleAdmin
	}
	profile := &DealerProfile{
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Mobile:      req.Mobile,
		Email:       strings.ToLower(req.Email),
		CompanyName: strings.TrimSpace(req.CompanyName),
		GSTNumber:   strings.ToUpper(req.GSTNumber),
		PANNumber:   strings.ToUpper(req.PANNumber),
		Aadhaar:     req.Aadhaar,
		Address:     req.Address,
	}
	return s.create(ctx, actor, Account{Username: req.Username, Role: role, Dealer: profile}, req.Password)
}

func (s *Service) CreateVisitor(ctx context.Context, actor shared.Principal, req CreateVisitorRequest) (*Account, error) {
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	profile := &VisitorProfile{
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Mobile:     req.Mobile,
		Email:      strings.ToLower(req.Email),
		EmployeeID: strings.TrimSpace(req.EmployeeID),
	}
	return s.create(ctx, actor, Account{Username: req.Username, Role: shared.RoleVisitor, Visitor: profile}, req.Password)
}

func (s *Service) CreateAccountManager(ctx context.Context, actor shared.Principal, req CreateAccountManagerRequest) (*Account, error) {
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	profile := &ManagerProfile{
		FullName: strings.TrimSpace(req.FullName),
		Email:    strings.ToLower(req.Email),
		Mobile:   req.Mobile,
	}
	return s.create(ctx, actor, Account{Username: req.Username, Role: shared.RoleAccountManager, Manager: profile}, req.Password)
}

func (s *Service) create(ctx context.Context, actor shared.Principal, account Account, password string) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	now := s.now()
	account.ID = uuid.NewString()
	account.Username = strings.TrimSpace(account.Username)
	account.PasswordHash = string(hash)
	account.IsActive = true
	account.CreatedAt = now
	account.UpdatedAt = now

	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, httpx.NewError(httpx.CodeDuplicate, "username already taken").
				WithDetails(map[string]string{"username": account.Username})
		}
		return nil, err
	}
	s.record(ctx, actor, "account.create", account.ID, map[string]any{"role": account.Role, "username": account.Username})
	return &account, nil
}

// Get returns an account by id.
func (s *Service) Get(ctx context.Context, id string) (*Account, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return account, nil
}

// ListDealers returns dealers and admins.
func (s *Service) ListDealers(ctx context.Context) ([]Account, error) {
	dealers, err := s.repo.ListByRole(ctx, shared.RoleDealer, false)
	if err != nil {
		return nil, err
	}
	admins, err := s.repo.ListByRole(ctx, shared.RoleAdmin, false)
	if err != nil {
		return nil, err
	}
	return append(dealers, admins...), nil
}

// ListVisitors returns visitors that can be scheduled.
func (s *Service) ListVisitors(ctx context.Context, activeOnly bool) ([]Account, error) {
	return s.repo.ListByRole(ctx, shared.RoleVisitor, activeOnly)
}

// SetActive enables or disables an account.
func (s *Service) SetActive(ctx context.Context, actor shared.Principal, id string, req SetActiveRequest) (*Account, error) {
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	if id == actor.AccountID && !*req.IsActive {
		return nil, httpx.NewError(httpx.CodeForbidden, "cannot deactivate your own account")
	}
	if err := s.repo.SetActive(ctx, id, *req.IsActive); err != nil {
		return nil, mapNotFound(err)
	}
	if !*req.IsActive && s.sessions != nil {
		if err := s.sessions.DestroyAll(ctx, id); err != nil {
			return nil, fmt.Errorf("revoke sessions: %w", err)
		}
	}
	s.record(ctx, actor, "account.set_active", id, map[string]any{"isActive": *req.IsActive})
	return s.Get(ctx, id)
}

// Authenticate checks credentials against the first realm, in order, that
// knows the username. Unknown users, inactive accounts and wrong passwords
// are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, password string, realms ...Realm) (*Account, error) {
	account, err := s.lookup(ctx, strings.TrimSpace(username), realms)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, errInvalidCredentials
	}
	if !account.IsActive {
		return nil, errInvalidCredentials
	}
	return account, nil
}

func (s *Service) lookup(ctx context.Context, username string, realms []Realm) (*Account, error) {
	for _, realm := range realms {
		account, err := s.repo.FindByUsername(ctx, realm, username)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// FindByUsername returns the account held by the first realm that knows the
// username.
func (s *Service) FindByUsername(ctx context.Context, username string, realms ...Realm) (*Account, error) {
	account, err := s.lookup(ctx, strings.TrimSpace(username), realms)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return account, nil
}

// SetPassword replaces the password hash of an account.
func (s *Service) SetPassword(ctx context.Context, id, password string) error {
	if len(password) < 8 || len(password) > 72 {
		return httpx.Validation("request validation failed", map[string]string{"password": "must be between 8 and 72 characters"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hash)); err != nil {
		return mapNotFound(err)
	}
	s.record(ctx, shared.Principal{AccountID: id}, "account.password_reset", id, nil)
	return nil
}

// EnsureAdmin creates the bootstrap administrator when it does not exist.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	_, err := s.repo.FindByUsername(ctx, RealmDealer, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	_, err = s.create(ctx, shared.Principal{}, Account{
		Username: username,
		Role:     shared.RoleAdmin,
		Dealer:   &DealerProfile{FirstName: "System", LastName: "Administrator"},
	}, password)
	if err != nil && !httpx.HasCode(err, httpx.CodeDuplicate) {
		return err
	}
	s.logger.Info("bootstrap admin ensured", slog.String("username", username))
	return nil
}

func (s *Service) record(ctx context.Context, actor shared.Principal, action, id string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.AccountID,
		Action:   action,
		Entity:   "account",
		EntityID: id,
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

var errInvalidCredentials = httpx.NewError(httpx.CodeInvalidCredentials, "invalid username or password")

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return httpx.NewError(httpx.CodeAccountNotFound, "account not found")
	}
	return err
}
