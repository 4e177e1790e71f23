package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarquote/solarquote/internal/platform/cache"
	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/pricing"
	"github.com/solarquote/solarquote/internal/shared"
)

type stubRepo struct {
	mu     sync.Mutex
	stored *pricing.Catalog
	loads  atomic.Int32
	delay  time.Duration
}

func (s *stubRepo) Load(context.Context) (pricing.Catalog, error) {
	s.loads.Add(1)
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored == nil {
		return pricing.Catalog{}, ErrNotFound
	}
	return *s.stored, nil
}

func (s *stubRepo) Save(_ context.Context, c pricing.Catalog, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = &c
	return nil
}

func newCache(t *testing.T) (*cache.JSON, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewJSON(client, "catalog:"), mr
}

func TestCurrentFallsBackToDefaults(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, time.Minute, nil, nil)
	c, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pricing.DefaultCatalog().PanelRatePerWatt, c.PanelRatePerWatt)
}

func TestCurrentUsesCache(t *testing.T) {
	repo := &stubRepo{}
	jsonCache, mr := newCache(t)
	svc := NewService(repo, jsonCache, time.Minute, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Current(ctx)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, repo.loads.Load())
	assert.True(t, mr.Exists("catalog:current"))

	mr.FastForward(2 * time.Minute)
	_, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, repo.loads.Load())
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	repo := &stubRepo{delay: 50 * time.Millisecond}
	svc := NewService(repo, nil, time.Minute, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Current(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Less(t, repo.loads.Load(), int32(8))
}

type auditStub struct{ actions []string }

func (a *auditStub) Record(_ context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

func TestReplaceValidatesAndInvalidates(t *testing.T) {
	repo := &stubRepo{}
	jsonCache, mr := newCache(t)
	audit := &auditStub{}
	svc := NewService(repo, jsonCache, time.Minute, audit, nil)
	ctx := context.Background()
	admin := shared.Principal{AccountID: "admin-1", Role: shared.RoleAdmin}

	_, err := svc.Current(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists("catalog:current"))

	bad := pricing.DefaultCatalog()
	bad.PanelRatePerWatt = 0
	_, err = svc.Replace(ctx, admin, bad)
	require.True(t, httpx.HasCode(err, httpx.CodeValidation))
	assert.Contains(t, httpx.AsError(err).Details, "panelRatePerWatt")

	next := pricing.DefaultCatalog()
	next.PanelRatePerWatt = 30
	saved, err := svc.Replace(ctx, admin, next)
	require.NoError(t, err)
	assert.False(t, saved.UpdatedAt.IsZero())
	assert.False(t, mr.Exists("catalog:current"))
	assert.Equal(t, []string{"catalog.replace"}, audit.actions)

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30.0, current.PanelRatePerWatt)
}
