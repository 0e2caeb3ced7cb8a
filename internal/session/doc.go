// Package session holds the client's view of the authenticated session:
// whether the user is signed in, when the access token expires, and whether
// a token refresh is in flight.
//
// State is the single source of truth. It is safe for concurrent use. Only
// the refresh coordinator in internal/client/transport is expected to call
// the mutating methods; everything else reads through Snapshot and the
// accessors.
//
// Only IsAuthenticated and AccessTokenExpiry survive a restart (see Store).
// The refreshing flag always starts false.
package session
