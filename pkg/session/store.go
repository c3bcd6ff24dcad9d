package session

import "context"

// Store persists sessions by token.
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by token. It returns ErrSessionNotFound for
	// unknown tokens and ErrSessionExpired for expired ones.
	Get(ctx context.Context, token string) (*Session, error)

	// Update replaces an existing session.
	Update(ctx context.Context, session *Session) error

	// Delete removes a session by token.
	Delete(ctx context.Context, token string) error
}
