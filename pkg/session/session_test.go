package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantguard/pkg/session"
)

func TestNew(t *testing.T) {
	t.Parallel()

	s, err := session.New("user-1", time.Hour)
	require.NoError(t, err)
	assert.Len(t, s.Token, 43)
	assert.True(t, s.IsAuthenticated())
	assert.False(t, s.IsExpired())

	other, err := session.New("", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, s.Token, other.Token)
	assert.False(t, other.IsAuthenticated())
}

func TestSessionData(t *testing.T) {
	t.Parallel()

	s := &session.Session{}
	_, ok := s.GetString("tenant_id")
	assert.False(t, ok)

	s.Set("tenant_id", "7c9e6679-7425-40de-944b-e07fc1f90ae7")
	s.Set("count", 3)

	v, ok := s.GetString("tenant_id")
	require.True(t, ok)
	assert.Equal(t, "7c9e6679-7425-40de-944b-e07fc1f90ae7", v)

	_, ok = s.GetString("count")
	assert.False(t, ok, "non-string value")

	s.Delete("tenant_id")
	_, ok = s.Get("tenant_id")
	assert.False(t, ok)

	var nilSession *session.Session
	assert.NotPanics(t, func() {
		nilSession.Set("k", "v")
		_, _ = nilSession.GetString("k")
	})
}

func TestIsExpired(t *testing.T) {
	t.Parallel()

	s := &session.Session{ExpiresAt: time.Now().Add(-time.Second)}
	assert.True(t, s.IsExpired())
}
