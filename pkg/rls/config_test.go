package rls_test

import (
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantguard/pkg/rls"
)

func TestConfigEngineOptions(t *testing.T) {
	t.Setenv("RLS_MODE", "strict")
	t.Setenv("RLS_ROLES", "app_user,reporting")
	t.Setenv("RLS_FORCE_ROW_SECURITY", "false")

	var cfg rls.Config
	require.NoError(t, env.Parse(&cfg))
	assert.Equal(t, []string{"public"}, cfg.Schemas)

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)

	p, err := rls.NewEngine(nil, opts...).Policy("orders")
	require.NoError(t, err)
	assert.False(t, p.Force)
	assert.Equal(t, []string{"app_user", "reporting"}, p.Roles)
	assert.Equal(t, rls.ModeStrict.Predicate(rls.TenantColumn), p.Using)

	_, err = rls.Config{Mode: "lenient"}.EngineOptions()
	assert.Error(t, err)
}
