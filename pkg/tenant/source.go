package tenant

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/tenantguard/pkg/cookie"
	"github.com/dmitrymomot/tenantguard/pkg/principal"
	"github.com/dmitrymomot/tenantguard/pkg/session"
)

// Source is one place a tenant identifier can come from.
// Extract returns "" when the source has nothing for the request. An error
// means the source had a value that could not be read; the middleware logs
// it and moves on to the next source.
type Source interface {
	Name() string
	Extract(r *http.Request) (string, error)
}

type sourceFunc struct {
	name string
	fn   func(r *http.Request) (string, error)
}

func (s sourceFunc) Name() string { return s.name }

func (s sourceFunc) Extract(r *http.Request) (string, error) { return s.fn(r) }

// SourceFunc adapts a function to the Source interface.
func SourceFunc(name string, fn func(r *http.Request) (string, error)) Source {
	return sourceFunc{name: name, fn: fn}
}

// HeaderSource reads an explicit request header.
func HeaderSource(header string) Source {
	if header == "" {
		header = DefaultHeader
	}
	return SourceFunc("header", func(r *http.Request) (string, error) {
		return r.Header.Get(header), nil
	})
}

// PrincipalSource reads the tenant claim of the authenticated principal.
func PrincipalSource() Source {
	return SourceFunc("principal", func(r *http.Request) (string, error) {
		p, ok := principal.FromContext(r.Context())
		if !ok {
			return "", nil
		}
		id, ok := p.TenantID()
		if !ok {
			return "", nil
		}
		return id.String(), nil
	})
}

// SessionSource reads key from the server-side session.
func SessionSource(key string) Source {
	if key == "" {
		key = DefaultSessionKey
	}
	return SourceFunc("session", func(r *http.Request) (string, error) {
		s, ok := session.FromContext(r.Context())
		if !ok {
			return "", nil
		}
		v, _ := s.GetString(key)
		return v, nil
	})
}

// CookieSource reads a plain cookie.
func CookieSource(name string) Source {
	if name == "" {
		name = DefaultCookieName
	}
	return SourceFunc("cookie", func(r *http.Request) (string, error) {
		c, err := r.Cookie(name)
		if err != nil {
			return "", nil
		}
		return c.Value, nil
	})
}

// SignedCookieSource reads a cookie signed by m. Tampered cookies are reported
// as errors.
func SignedCookieSource(m *cookie.Manager, name string) Source {
	if name == "" {
		name = DefaultCookieName
	}
	return SourceFunc("cookie", func(r *http.Request) (string, error) {
		v, err := m.GetSigned(r, name)
		if errors.Is(err, cookie.ErrCookieNotFound) {
			return "", nil
		}
		return v, err
	})
}

// DefaultSources returns the default extraction order: explicit header,
// authenticated principal, session, cookie.
func DefaultSources() []Source {
	return []Source{
		HeaderSource(DefaultHeader),
		PrincipalSource(),
		SessionSource(DefaultSessionKey),
		CookieSource(DefaultCookieName),
	}
}
