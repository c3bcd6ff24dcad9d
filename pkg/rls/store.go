package rls

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantguard/pkg/logger"
	"github.com/dmitrymomot/tenantguard/pkg/metrics"
)

const (
	// Setting is the session parameter holding the current tenant.
	Setting = "app.current_tenant"

	// AdminSetting is the session parameter that marks explicit admin mode.
	AdminSetting = "app.tenant_admin"

	// TenantColumn is the column every tenant-scoped table carries.
	TenantColumn = "tenant_id"
)

const (
	sqlSetContext       = "SELECT set_tenant_context($1)"
	sqlSetLocalContext  = "SELECT set_tenant_context($1, true)"
	sqlGetContext       = "SELECT get_tenant_context()"
	sqlClearContext     = "SELECT clear_tenant_context()"
	sqlFallbackContext  = "SELECT set_config('" + Setting + "', '', false)"
	sqlResetContext     = "RESET " + Setting
	sqlResetAdmin       = "RESET " + AdminSetting
	sqlEnterAdmin       = "SELECT set_config('" + AdminSetting + "', 'on', false)"
	sqlExitAdmin        = "SELECT set_config('" + AdminSetting + "', 'off', false)"
	sqlEnterAdminLocal  = "SELECT set_config('" + AdminSetting + "', 'on', true)"
	sqlClearLocalTenant = "SELECT set_tenant_context('', true)"
)

// Canonical returns the canonical string form of a tenant identifier.
// UUIDs are normalised to their lower-case hyphenated form; anything else is
// only trimmed. The empty string is the unrestricted sentinel.
func Canonical(tenantID string) string {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return ""
	}
	if id, err := uuid.Parse(tenantID); err == nil {
		return id.String()
	}
	return tenantID
}

// Store reads and writes the tenant context of one connection through the
// set_tenant_context, get_tenant_context and clear_tenant_context functions.
// A Store is not safe for concurrent use; neither is the connection under it.
type Store struct {
	conn    Conn
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used for context failures.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStoreMetrics records context failures on m.
func WithStoreMetrics(m *metrics.Recorder) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// NewStore returns a Store bound to conn.
func NewStore(conn Conn, opts ...StoreOption) *Store {
	s := &Store{
		conn:   conn,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set binds tenantID to the connection for the rest of the session.
// An empty tenantID sets the unrestricted sentinel. On failure the context is
// forced back to the empty sentinel so a previous tenant can never survive,
// and ErrContextUnavailable is returned.
func (s *Store) Set(ctx context.Context, tenantID string) error {
	id := Canonical(tenantID)
	if _, err := s.conn.Exec(ctx, sqlSetContext, id); err != nil {
		s.metrics.ContextError("set")
		s.logger.ErrorContext(ctx, "failed to set tenant context",
			logger.TenantID(id),
			logger.Error(err),
		)
		s.fallback(ctx)
		return errors.Join(ErrContextUnavailable, err)
	}
	return nil
}

// Get returns the tenant bound to the connection, or "" when none is bound.
// It never fails: if the parameter cannot be read it is initialised to the
// empty sentinel and "" is returned.
func (s *Store) Get(ctx context.Context) string {
	var id string
	if err := s.conn.QueryRow(ctx, sqlGetContext).Scan(&id); err != nil {
		s.metrics.ContextError("get")
		s.logger.WarnContext(ctx, "failed to read tenant context, resetting", logger.Error(err))
		s.fallback(ctx)
		return ""
	}
	return id
}

// Clear resets the tenant context to the empty sentinel.
// Clearing a connection that never had a context is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, sqlClearContext); err != nil {
		s.metrics.ContextError("clear")
		s.logger.ErrorContext(ctx, "failed to clear tenant context", logger.Error(err))
		return errors.Join(ErrContextUnavailable, err)
	}
	return nil
}

// Reset issues RESET for the tenant and admin parameters directly, without
// going through the context functions.
func (s *Store) Reset(ctx context.Context) error {
	var errs []error
	if _, err := s.conn.Exec(ctx, sqlResetContext); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.conn.Exec(ctx, sqlResetAdmin); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		s.metrics.ContextError("reset")
		err := errors.Join(errs...)
		s.logger.ErrorContext(ctx, "failed to reset tenant parameters", logger.Error(err))
		return errors.Join(ErrContextUnavailable, err)
	}
	return nil
}

// EnterAdmin switches the connection into explicit admin mode. Only policies
// created in ModeStrict look at it.
func (s *Store) EnterAdmin(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, sqlEnterAdmin); err != nil {
		s.metrics.ContextError("admin")
		return errors.Join(ErrContextUnavailable, err)
	}
	s.logger.WarnContext(ctx, "tenant admin mode enabled on connection")
	return nil
}

// ExitAdmin leaves admin mode.
func (s *Store) ExitAdmin(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, sqlExitAdmin); err != nil {
		s.metrics.ContextError("admin")
		return errors.Join(ErrContextUnavailable, err)
	}
	return nil
}

// fallback forces the empty sentinel using set_config directly.
func (s *Store) fallback(ctx context.Context) {
	if _, err := s.conn.Exec(ctx, sqlFallbackContext); err != nil {
		s.logger.ErrorContext(ctx, "failed to initialise empty tenant context", logger.Error(err))
	}
}
