package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Session is a refresh-token session persisted in Redis.
type Session struct {
	ID        string    `json:"id"`
	Principal Principal `json:"principal"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionManager owns the lifecycle of refresh sessions: login creates,
// refresh rotates, logout and password reset revoke.
type SessionManager struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, ttl time.Duration) *SessionManager {
	return &SessionManager{client: client, ttl: ttl, now: time.Now}
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// Create starts a new session for p and returns it. The session ID doubles as
// the opaque refresh token.
func (sm *SessionManager) Create(ctx context.Context, p Principal) (*Session, error) {
	now := sm.now().UTC()
	sess := &Session{ID: uuid.NewString(), CreatedAt: now, ExpiresAt: now.Add(sm.ttl)}
	p.SessionID = sess.ID
	sess.Principal = p

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	pipe := sm.client.TxPipeline()
	pipe.Set(ctx, sessionKey(sess.ID), data, sm.ttl)
	pipe.SAdd(ctx, accountSessionsKey(p.AccountID), sess.ID)
	pipe.Expire(ctx, accountSessionsKey(p.AccountID), sm.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Load returns the live session for id.
func (sm *SessionManager) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	data, err := sm.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Rotate revokes id and issues a replacement session for the same principal.
func (sm *SessionManager) Rotate(ctx context.Context, id string) (*Session, error) {
	sess, err := sm.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	deleted, err := sm.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if deleted == 0 {
		return nil, ErrSessionNotFound
	}
	sm.client.SRem(ctx, accountSessionsKey(sess.Principal.AccountID), id)
	return sm.Create(ctx, sess.Principal)
}

// Destroy removes a single session. Unknown IDs are ignored.
func (sm *SessionManager) Destroy(ctx context.Context, id string) error {
	sess, err := sm.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	pipe := sm.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, accountSessionsKey(sess.Principal.AccountID), id)
	_, err = pipe.Exec(ctx)
	return err
}

// DestroyAll revokes every session of an account.
func (sm *SessionManager) DestroyAll(ctx context.Context, accountID string) error {
	ids, err := sm.client.SMembers(ctx, accountSessionsKey(accountID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, accountSessionsKey(accountID))
	return sm.client.Del(ctx, keys...).Err()
}

func sessionKey(id string) string {
	return "session:" + id
}

func accountSessionsKey(accountID string) string {
	return "account-sessions:" + accountID
}
