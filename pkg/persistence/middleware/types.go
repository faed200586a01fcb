// Package middleware wraps session stores with cross-cutting behavior.
package middleware

import "github.com/pixl-ae/leadflow/pkg/ports"

// Middleware allows wrapping a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore
