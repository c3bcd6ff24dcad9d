package cookie

import "errors"

var (
	ErrNoSecret         = errors.New("cookie: no signing secret configured")
	ErrSecretTooShort   = errors.New("cookie: signing secret too short")
	ErrInvalidSignature = errors.New("cookie: signature mismatch")
	ErrInvalidFormat    = errors.New("cookie: malformed signed value")
	ErrCookieNotFound   = errors.New("cookie: not found")
)
