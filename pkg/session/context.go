package session

import "context"

type sessionContextKey struct{}

// WithSession stores the request's session. The tenant middleware reads it
// as a fallback tenant source.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// FromContext returns the request's session; a stored nil counts as absent.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok && s != nil
}
