package session

import (
	"context"
	"fmt"
	"time"
)

// Persisted is the reload-surviving part of the session.
type Persisted struct {
	IsAuthenticated      bool
	AccessTokenExpiresAt time.Time
}

// Store loads and saves persisted session flags.
type Store interface {
	Load(ctx context.Context) (Persisted, error)
	Save(ctx context.Context, p Persisted) error
}

// Restore builds a State from store. A nil store yields a fresh state.
func Restore(ctx context.Context, store Store) (*State, error) {
	if store == nil {
		return NewState(), nil
	}
	p, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	return FromPersisted(p), nil
}
