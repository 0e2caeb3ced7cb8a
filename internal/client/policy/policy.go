// Package policy decides when a session is unrecoverable.
//
// Decisions are pure: AfterRefreshFailure and AfterResponse return what
// should happen, and the caller (the transport) clears the session state and
// publishes the SessionLost intent. Navigation itself belongs to the shell
// that receives the intent.
package policy

import (
	"strings"
	"sync"

	"github.com/dmitrijs2005/sessionkeeper/internal/apierr"
)

// Defaults matching the web client's routes.
const (
	DefaultAuthPathPrefix = "/auth/"
	DefaultSignInPath     = "/auth/signin"
)

// SessionLost tells the shell that the session is gone and where the user
// should be sent to sign in again.
type SessionLost struct {
	Reason     apierr.Error
	RedirectTo string
}

// Decision is the outcome of a policy check.
type Decision struct {
	ClearSession bool
	Reason       apierr.Error
	// Redirect is nil when no navigation is needed, either because the
	// session is still fine or because the user is already on an
	// authentication-flow route.
	Redirect *SessionLost
}

// Policy holds the route conventions the decision depends on.
type Policy struct {
	AuthPathPrefix string
	SignInPath     string
}

func New(authPathPrefix, signInPath string) Policy {
	if authPathPrefix == "" {
		authPathPrefix = DefaultAuthPathPrefix
	}
	if signInPath == "" {
		signInPath = DefaultSignInPath
	}
	return Policy{AuthPathPrefix: authPathPrefix, SignInPath: signInPath}
}

// IsAuthPath reports whether path belongs to the sign-in/sign-up flow.
func (p Policy) IsAuthPath(path string) bool {
	return p.AuthPathPrefix != "" && strings.HasPrefix(path, p.AuthPathPrefix)
}

// AfterRefreshFailure is the decision for a failed token refresh: the
// session is always cleared, whatever the reason.
func (p Policy) AfterRefreshFailure(reason apierr.Error, currentPath string) Decision {
	return p.lost(reason, currentPath)
}

// AfterResponse is the decision for an ordinary failed response. Only
// InvalidSessionError outside the authentication flow ends the session.
func (p Policy) AfterResponse(reason apierr.Error, currentPath string) Decision {
	if reason.Kind != apierr.InvalidSessionError || p.IsAuthPath(currentPath) {
		return Decision{}
	}
	return p.lost(reason, currentPath)
}

func (p Policy) lost(reason apierr.Error, currentPath string) Decision {
	d := Decision{ClearSession: true, Reason: reason}
	if !p.IsAuthPath(currentPath) {
		d.Redirect = &SessionLost{Reason: reason, RedirectTo: p.SignInPath}
	}
	return d
}

// Location reports the shell's current route.
type Location interface {
	CurrentPath() string
}

// Route is a Location the shell updates as the user navigates. An empty
// route reads as "/".
type Route struct {
	mu   sync.RWMutex
	path string
}

func NewRoute(path string) *Route {
	return &Route{path: path}
}

func (r *Route) CurrentPath() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.path == "" {
		return "/"
	}
	return r.path
}

func (r *Route) Set(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.path = path
}
