package jwt

import "errors"

var (
	ErrInvalidToken      = errors.New("jwt: invalid token")
	ErrMissingToken      = errors.New("jwt: missing token")
	ErrExpiredToken      = errors.New("jwt: token is expired")
	ErrMissingSigningKey = errors.New("jwt: missing signing key")
	ErrInvalidSignature  = errors.New("jwt: invalid signature")
	ErrInvalidTenant     = errors.New("jwt: invalid tenant claim")
)
