package tenant

import "errors"

var (
	// ErrTenantRequired is returned when a tenant-scoped request carries no
	// usable tenant identifier or the tenant could not be bound.
	ErrTenantRequired = errors.New("tenant required")

	// ErrTenantNotFound is returned when a tenant cannot be found.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrInvalidIdentifier is returned when an identifier is not a valid UUID.
	ErrInvalidIdentifier = errors.New("invalid tenant identifier")

	// ErrNoTenantInContext is returned when no tenant is found in context.
	ErrNoTenantInContext = errors.New("no tenant in context")

	// ErrInactiveTenant is returned when trying to use an inactive tenant.
	ErrInactiveTenant = errors.New("tenant is inactive")
)
