package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarquote/solarquote/internal/shared"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", "solarquote", time.Minute)
	p := shared.Principal{AccountID: "a-1", Username: "ravi", Role: shared.RoleDealer, SessionID: "s-1"}

	token, expiresAt, err := issuer.Issue(p)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)

	got, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestTokenRejections(t *testing.T) {
	issuer := NewTokenIssuer("secret", "solarquote", time.Minute)
	token, _, err := issuer.Issue(shared.Principal{AccountID: "a-1", Role: shared.RoleVisitor})
	require.NoError(t, err)

	_, err = NewTokenIssuer("other-secret", "solarquote", time.Minute).Parse(token)
	assert.Error(t, err)

	_, err = NewTokenIssuer("secret", "someone-else", time.Minute).Parse(token)
	assert.Error(t, err)

	later := NewTokenIssuer("secret", "solarquote", time.Minute)
	later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = later.Parse(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	bad, _, err := issuer.Issue(shared.Principal{AccountID: "a-1", Role: "superuser"})
	require.NoError(t, err)
	_, err = issuer.Parse(bad)
	assert.Error(t, err)
}
