package httpserver

import "errors"

var (
	// ErrStart wraps listen and serve failures.
	ErrStart = errors.New("httpserver: start failed")
	// ErrShutdown wraps graceful shutdown failures.
	ErrShutdown = errors.New("httpserver: graceful shutdown failed")
)
