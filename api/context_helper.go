package api

import (
	"context"
	"time"
)

// QueryTimeout is the default timeout for database and gateway queries
const QueryTimeout = 10 * time.Second

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return WithTimeout(parent, QueryTimeout)
}

// WithTimeout is WithQueryTimeout with an explicit duration. A nil parent
// means context.Background.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, d)
}
