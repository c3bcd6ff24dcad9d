// Package cookie signs and verifies HTTP cookies with HMAC-SHA256.
//
// The tenant middleware uses it to read a tenant cookie as its last identifier
// source; signing makes that cookie tamper-evident, although it never replaces
// an authenticated source. Secrets must be at least 32 characters. The first
// secret signs new cookies and all secrets are tried on verification.
//
//	m, err := cookie.New([]string{os.Getenv("COOKIE_SECRET")}, cookie.WithSecure(true))
//	m.SetSigned(w, "tenant_id", id.String())
//	id, err := m.GetSigned(r, "tenant_id")
package cookie
