package rls

import "errors"

var (
	// ErrContextUnavailable is returned when the tenant context could not be written to the connection.
	ErrContextUnavailable = errors.New("rls: tenant context unavailable")

	// ErrAcquireConn is returned when no connection could be acquired for a session.
	ErrAcquireConn = errors.New("rls: failed to acquire connection")

	// ErrEmptyTenant is returned when a tenant-bound operation receives an empty tenant id.
	ErrEmptyTenant = errors.New("rls: empty tenant id")

	// ErrTableNotFound is returned when a policy target table does not exist.
	ErrTableNotFound = errors.New("rls: table not found")

	// ErrNotTenantScoped is returned when a policy target table has no tenant_id column.
	ErrNotTenantScoped = errors.New("rls: table has no tenant_id column")

	// ErrInvalidTableName is returned for empty or malformed table names.
	ErrInvalidTableName = errors.New("rls: invalid table name")

	// ErrPolicyApply is returned when enabling RLS or creating a policy fails.
	ErrPolicyApply = errors.New("rls: failed to apply policy")

	// ErrInvalidManifest is returned when a policy manifest cannot be used.
	ErrInvalidManifest = errors.New("rls: invalid manifest")
)
