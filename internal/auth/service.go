package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/solarquote/solarquote/internal/accounts"
	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/shared"
	"github.com/solarquote/solarquote/jobs"
)

// Directory is the account store consulted by the auth flows.
type Directory interface {
	Authenticate(ctx context.Context, username, password string, realms ...accounts.Realm) (*accounts.Account, error)
	FindByUsername(ctx context.Context, username string, realms ...accounts.Realm) (*accounts.Account, error)
	Get(ctx context.Context, id string) (*accounts.Account, error)
	SetPassword(ctx context.Context, id, password string) error
}

// MailQueue enqueues transactional mail.
type MailQueue interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Config carries the auth settings.
type Config struct {
	ResetTokenTTL    time.Duration
	PasswordResetURL string
}

// Service wraps authentication business rules.
type Service struct {
	directory Directory
	sessions  *shared.SessionManager
	tokens    *TokenIssuer
	redis     redis.Cmdable
	mail      MailQueue
	cfg       Config
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewService constructs a new Service.
func NewService(directory Directory, sessions *shared.SessionManager, tokens *TokenIssuer, client redis.Cmdable, mail MailQueue, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = 30 * time.Minute
	}
	return &Service{
		directory: directory,
		sessions:  sessions,
		tokens:    tokens,
		redis:     client,
		mail:      mail,
		cfg:       cfg,
		validate:  httpx.NewValidator(),
		logger:    logger,
	}
}

var loginRealms = []accounts.Realm{accounts.RealmDealer, accounts.RealmVisitor}

// Login authenticates dealers, admins and visitors. The dealer realm is
// consulted first.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Tokens, error) {
	return s.login(ctx, req, loginRealms...)
}

// LoginAccountManager authenticates within the account-management realm.
func (s *Service) LoginAccountManager(ctx context.Context, req LoginRequest) (*Tokens, error) {
	return s.login(ctx, req, accounts.RealmAccountManager)
}

func (s *Service) login(ctx context.Context, req LoginRequest, realms ...accounts.Realm) (*Tokens, error) {
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	account, err := s.directory.Authenticate(ctx, req.Username, req.Password, realms...)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Create(ctx, account.Principal())
	if err != nil {
		return nil, err
	}
	tokens, err := s.issue(sess)
	if err != nil {
		return nil, err
	}
	tokens.Account = account
	s.logger.Info("login", slog.String("account_id", account.ID), slog.String("role", string(account.Role)))
	return tokens, nil
}

// Refresh rotates the refresh session and issues a new access token.
func (s *Service) Refresh(ctx context.Context, req RefreshRequest) (*Tokens, error) {
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Rotate(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, shared.ErrSessionNotFound) {
			return nil, errSessionExpired
		}
		return nil, err
	}
	account, err := s.directory.Get(ctx, sess.Principal.AccountID)
	if err != nil || !account.IsActive {
		_ = s.sessions.Destroy(ctx, sess.ID)
		if err != nil && !httpx.HasCode(err, httpx.CodeAccountNotFound) {
			return nil, err
		}
		return nil, errSessionExpired
	}
	return s.issue(sess)
}

// Logout tears down the refresh session.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.sessions.Destroy(ctx, refreshToken)
}

// ForgotPassword issues a reset token and mails it. Unknown usernames succeed
// silently so the endpoint cannot be used to enumerate accounts.
func (s *Service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return err
	}
	account, err := s.directory.FindByUsername(ctx, req.Username,
		accounts.RealmDealer, accounts.RealmVisitor, accounts.RealmAccountManager)
	if err != nil {
		if httpx.HasCode(err, httpx.CodeAccountNotFound) {
			s.logger.Debug("password reset for unknown username")
			return nil
		}
		return err
	}
	if !account.IsActive || account.Email() == "" {
		s.logger.Warn("password reset skipped", slog.String("account_id", account.ID))
		return nil
	}

	token := uuid.NewString()
	if err := s.redis.Set(ctx, resetKey(token), account.ID, s.cfg.ResetTokenTTL).Err(); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if s.mail == nil {
		return nil
	}
	_, err = s.mail.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      account.Email(),
		Subject: "Reset your SolarQuote password",
		Body: fmt.Sprintf("Hello %s,\n\nUse the link below to choose a new password. It expires in %s.\n\n%s\n",
			account.DisplayName(), s.cfg.ResetTokenTTL, s.resetLink(token)),
	})
	if err != nil {
		s.redis.Del(ctx, resetKey(token))
		return fmt.Errorf("enqueue reset mail: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset token and revokes every session of the
// account.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return err
	}
	accountID, err := s.redis.Get(ctx, resetKey(req.Token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errResetTokenInvalid
		}
		return err
	}
	deleted, err := s.redis.Del(ctx, resetKey(req.Token)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return errResetTokenInvalid
	}
	if err := s.directory.SetPassword(ctx, accountID, req.NewPassword); err != nil {
		return err
	}
	if err := s.sessions.DestroyAll(ctx, accountID); err != nil {
		s.logger.Warn("revoke sessions after reset", slog.String("account_id", accountID), slog.Any("error", err))
	}
	return nil
}

// Principal verifies an access token. When the token names a session, that
// session must still be live.
func (s *Service) Principal(ctx context.Context, token string) (shared.Principal, error) {
	p, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return shared.Principal{}, errSessionExpired
		}
		return shared.Principal{}, httpx.NewError(httpx.CodeUnauthenticated, "invalid access token")
	}
	if p.SessionID != "" {
		if _, err := s.sessions.Load(ctx, p.SessionID); err != nil {
			if errors.Is(err, shared.ErrSessionNotFound) {
				return shared.Principal{}, errSessionExpired
			}
			return shared.Principal{}, err
		}
	}
	return p, nil
}

func (s *Service) issue(sess *shared.Session) (*Tokens, error) {
	access, expiresAt, err := s.tokens.Issue(sess.Principal)
	if err != nil {
		return nil, err
	}
	return &Tokens{
		AccessToken:      access,
		TokenType:        "Bearer",
		ExpiresAt:        expiresAt,
		RefreshToken:     sess.ID,
		RefreshExpiresAt: sess.ExpiresAt,
	}, nil
}

func (s *Service) resetLink(token string) string {
	u, err := url.Parse(s.cfg.PasswordResetURL)
	if err != nil || s.cfg.PasswordResetURL == "" {
		return token
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func resetKey(token string) string {
	return "password-reset:" + token
}

var (
	errSessionExpired    = httpx.NewError(httpx.CodeSessionExpired, "session expired or revoked")
	errResetTokenInvalid = httpx.NewError(httpx.CodeResetTokenInvalid, "reset token is invalid or expired")
)
