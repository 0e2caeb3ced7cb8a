package session

import (
	"sync"
	"time"
)

// Snapshot is a consistent, point-in-time copy of State.
type Snapshot struct {
	IsAuthenticated   bool
	AccessTokenExpiry time.Time // zero when unauthenticated
	IsRefreshingToken bool
}

// State is the mutable session record.
//
// Invariant: IsAuthenticated implies a non-zero AccessTokenExpiry.
type State struct {
	mu         sync.RWMutex
	authed     bool
	expiry     time.Time
	refreshing bool
}

// NewState returns an unauthenticated state.
func NewState() *State {
	return &State{}
}

// FromPersisted rebuilds a state from its persisted fields. A record that
// claims to be authenticated without an expiry is treated as signed out.
func FromPersisted(p Persisted) *State {
	s := &State{}
	if p.IsAuthenticated && !p.AccessTokenExpiresAt.IsZero() {
		s.authed = true
		s.expiry = p.AccessTokenExpiresAt
	}
	return s
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		IsAuthenticated:   s.authed,
		AccessTokenExpiry: s.expiry,
		IsRefreshingToken: s.refreshing,
	}
}

func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authed
}

func (s *State) AccessTokenExpiry() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry
}

func (s *State) IsRefreshing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshing
}

// NeedsRefresh reports whether the access token should be renewed before
// sending a request at now: the session is authenticated, no refresh is in
// flight, and now+leeway has reached the expiry.
func (s *State) NeedsRefresh(now time.Time, leeway time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authed || s.refreshing || s.expiry.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(s.expiry)
}

// Establish marks the session authenticated until expiry. A zero expiry
// would break the state invariant and is ignored.
func (s *State) Establish(expiry time.Time) bool {
	if expiry.IsZero() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authed = true
	s.expiry = expiry
	return true
}

// Clear signs the session out. The refreshing flag is left to its owner.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authed = false
	s.expiry = time.Time{}
}

// TryBeginRefresh sets the refreshing flag if it is not already set and
// reports whether the caller now owns the refresh. Check and set happen
// under one lock.
func (s *State) TryBeginRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshing {
		return false
	}
	s.refreshing = true
	return true
}

// EndRefresh clears the refreshing flag.
func (s *State) EndRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshing = false
}

// Persisted returns the fields that should survive a restart.
func (s *State) Persisted() Persisted {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Persisted{IsAuthenticated: s.authed, AccessTokenExpiresAt: s.expiry}
}
