package ports

import (
	"context"

	"github.com/pixl-ae/leadflow/pkg/domain"
)

// SessionStore defines the save/load boundary for conversation sessions.
type SessionStore interface {
	// Save persists the session under its id.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves a session.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns the ids of stored sessions.
	List(ctx context.Context) ([]string, error)
}
