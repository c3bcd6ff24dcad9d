package jwt_test

import (
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantguard/pkg/jwt"
)

var signingKey = []byte(strings.Repeat("k", 32))

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := jwt.New(nil)
	assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)

	_, err = jwt.NewFromConfig(jwt.Config{})
	assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)

	svc, err := jwt.NewFromConfig(jwt.Config{Secret: string(signingKey), Issuer: "tg", TTL: time.Minute})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestIssueAndParse(t *testing.T) {
	t.Parallel()

	svc, err := jwt.New(signingKey, jwt.WithIssuer("tenantguard"))
	require.NoError(t, err)

	t.Run("round trip with tenant", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		token, err := svc.Issue("user-1", tenantID)
		require.NoError(t, err)

		claims, err := svc.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, "tenantguard", claims.Issuer)
		assert.NotEmpty(t, claims.ID)

		id, ok := claims.Tenant()
		assert.True(t, ok)
		assert.Equal(t, tenantID, id)
	})

	t.Run("no tenant claim", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Issue("user-2", uuid.Nil)
		require.NoError(t, err)

		claims, err := svc.Parse(token)
		require.NoError(t, err)
		_, ok := claims.Tenant()
		assert.False(t, ok)
	})

	t.Run("wrong key", func(t *testing.T) {
		t.Parallel()

		other, err := jwt.New([]byte(strings.Repeat("x", 32)), jwt.WithIssuer("tenantguard"))
		require.NoError(t, err)
		token, err := other.Issue("user-1", uuid.New())
		require.NoError(t, err)

		_, err = svc.Parse(token)
		assert.ErrorIs(t, err, jwt.ErrInvalidSignature)
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(&jwt.Claims{RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "tenantguard",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}})
		require.NoError(t, err)

		_, err = svc.Parse(token)
		assert.ErrorIs(t, err, jwt.ErrExpiredToken)
	})

	t.Run("expiry is required", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(&jwt.Claims{RegisteredClaims: gojwt.RegisteredClaims{
			Subject: "user-1",
			Issuer:  "tenantguard",
		}})
		require.NoError(t, err)

		_, err = svc.Parse(token)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		t.Parallel()

		other, err := jwt.New(signingKey, jwt.WithIssuer("someone-else"))
		require.NoError(t, err)
		token, err := other.Issue("user-1", uuid.Nil)
		require.NoError(t, err)

		_, err = svc.Parse(token)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("unexpected algorithm", func(t *testing.T) {
		t.Parallel()

		token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS512, &jwt.Claims{RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    "tenantguard",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}).SignedString(signingKey)
		require.NoError(t, err)

		claims, err := svc.Parse(token)
		assert.Error(t, err)
		assert.Nil(t, claims)
	})

	t.Run("malformed tenant claim", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(&jwt.Claims{
			TenantID: "acme",
			RegisteredClaims: gojwt.RegisteredClaims{
				Issuer:    "tenantguard",
				ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		require.NoError(t, err)

		_, err = svc.Parse(token)
		assert.ErrorIs(t, err, jwt.ErrInvalidTenant)
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()

		_, err := svc.Parse("not.a.token")
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})
}
