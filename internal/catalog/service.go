package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/solarquote/solarquote/internal/platform/cache"
	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/pricing"
	"github.com/solarquote/solarquote/internal/shared"
)

const cacheKey = "current"

// Cache is the JSON cache used for the active catalog.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service serves the active price catalog.
type Service struct {
	repo   Repository
	cache  Cache
	ttl    time.Duration
	audit  AuditRecorder
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewService constructs a Service. cache may be nil.
func NewService(repo Repository, c Cache, ttl time.Duration, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: c, ttl: ttl, audit: audit, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Current returns the stored catalog, falling back to the built-in defaults
// when nothing has been stored.
func (s *Service) Current(ctx context.Context) (pricing.Catalog, error) {
	if s.cache != nil {
		var cached pricing.Catalog
		err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("catalog cache read", slog.Any("error", err))
		}
	}

	ch := s.group.DoChan(cacheKey, func() (interface{}, error) {
		return s.load(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return pricing.Catalog{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return pricing.Catalog{}, res.Err
		}
		return res.Val.(pricing.Catalog), nil
	}
}

func (s *Service) load(ctx context.Context) (pricing.Catalog, error) {
	c, err := s.repo.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		c, err = pricing.DefaultCatalog(), nil
	}
	if err != nil {
		return pricing.Catalog{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, c, s.ttl); err != nil {
			s.logger.Warn("catalog cache write", slog.Any("error", err))
		}
	}
	return c, nil
}

// Replace validates and stores a new catalog.
func (s *Service) Replace(ctx context.Context, actor shared.Principal, c pricing.Catalog) (pricing.Catalog, error) {
	if errs := c.Validate(); len(errs) > 0 {
		return pricing.Catalog{}, httpx.Validation("catalog validation failed", errs)
	}
	c.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, c, actor.AccountID); err != nil {
		return pricing.Catalog{}, err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			s.logger.Warn("catalog cache invalidate", slog.Any("error", err))
		}
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID: actor.AccountID, Action: "catalog.replace", Entity: "catalog", EntityID: "1", At: c.UpdatedAt,
		}); err != nil {
			s.logger.Warn("audit record failed", slog.Any("error", err))
		}
	}
	return c, nil
}
