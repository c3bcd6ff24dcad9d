package rls

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/tenantguard/pkg/logger"
)

// closeTimeout bounds the cleanup of a session whose request context is gone.
const closeTimeout = 5 * time.Second

// Session is a leased connection bound to one tenant context.
// It belongs to a single request and must be closed exactly once.
type Session struct {
	lease    Lease
	store    *Store
	tenantID string
	logger   *slog.Logger
	closed   bool
}

// Open acquires a connection and binds tenantID to it.
// If binding fails the connection is cleaned and returned before the error is reported.
func Open(ctx context.Context, acq Acquirer, tenantID string, opts ...StoreOption) (*Session, error) {
	sess, err := acquire(ctx, acq, opts...)
	if err != nil {
		return nil, err
	}

	id := Canonical(tenantID)
	if err := sess.store.Set(ctx, id); err != nil {
		_ = sess.Close(ctx)
		return nil, err
	}
	sess.tenantID = id
	return sess, nil
}

// OpenUnbound acquires a connection and explicitly clears its tenant context.
// Used for public requests so a stale context left on a pooled connection is
// never inherited.
func OpenUnbound(ctx context.Context, acq Acquirer, opts ...StoreOption) (*Session, error) {
	sess, err := acquire(ctx, acq, opts...)
	if err != nil {
		return nil, err
	}
	if err := sess.store.Clear(ctx); err != nil {
		if rerr := sess.store.Reset(ctx); rerr != nil {
			_ = sess.Close(ctx)
			return nil, err
		}
	}
	return sess, nil
}

func acquire(ctx context.Context, acq Acquirer, opts ...StoreOption) (*Session, error) {
	lease, err := acq.Acquire(ctx)
	if err != nil {
		return nil, errors.Join(ErrAcquireConn, err)
	}
	store := NewStore(lease, opts...)
	return &Session{
		lease:  lease,
		store:  store,
		logger: store.logger,
	}, nil
}

// TenantID returns the bound tenant, "" for unbound sessions.
func (s *Session) TenantID() string {
	return s.tenantID
}

// Conn returns the leased connection. It must not be used after Close.
func (s *Session) Conn() Conn {
	return s.lease
}

// Store returns the context store of the leased connection.
func (s *Session) Store() *Store {
	return s.store
}

// Close clears the tenant context twice, once through clear_tenant_context and
// once with a direct RESET, then releases the connection. When both clearing
// mechanisms fail the connection is destroyed instead of being returned to the
// pool. Close runs even if ctx is already cancelled.
func (s *Session) Close(ctx context.Context) error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()

	clearErr := s.store.Clear(ctx)
	resetErr := s.store.Reset(ctx)

	if clearErr != nil && resetErr != nil {
		s.logger.ErrorContext(ctx, "tenant context could not be cleared, destroying connection",
			logger.TenantID(s.tenantID),
			logger.Errors(clearErr, resetErr),
		)
		s.destroy(ctx)
		return errors.Join(clearErr, resetErr)
	}

	s.lease.Release()
	return nil
}

func (s *Session) destroy(ctx context.Context) {
	h, ok := s.lease.(hijacker)
	if !ok {
		s.lease.Release()
		return
	}
	if conn := h.Hijack(); conn != nil {
		_ = conn.Close(ctx)
	}
}

type sessionContextKey struct{}

// WithSession attaches a session to the context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext returns the session bound to the request, if any.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok && s != nil
}

// ConnFromContext returns the request's leased connection when it is bound to
// a tenant. Handlers must run tenant-scoped queries on this connection only.
// Connections of unbound sessions are never returned here: their empty
// context is unrestricted under ModeEmptyUnrestricted.
func ConnFromContext(ctx context.Context) (Conn, bool) {
	s, ok := SessionFromContext(ctx)
	if !ok || s.closed || s.tenantID == "" {
		return nil, false
	}
	return s.lease, true
}

// UnboundConnFromContext returns the request's leased connection whether or
// not a tenant is bound. Public handlers use it for queries that are not
// tenant-scoped.
func UnboundConnFromContext(ctx context.Context) (Conn, bool) {
	s, ok := SessionFromContext(ctx)
	if !ok || s.closed {
		return nil, false
	}
	return s.lease, true
}
