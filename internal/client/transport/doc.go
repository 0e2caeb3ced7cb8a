// Package transport is the single choke point for API calls made by the
// client. It keeps the session alive across concurrent requests.
//
// # Overview
//
// Client.Do runs every request through the same pipeline:
//
//  1. If the session is authenticated, no refresh is in flight, the shell is
//     not on an authentication-flow route and the access token expires within
//     the refresh leeway, the Coordinator refreshes the token first
//     (proactive refresh). If that fails the request is not sent and the
//     error wraps ErrSessionExpired.
//  2. The CSRF token is read from the csrfToken cookie and sent as
//     X-Csrf-Token, together with a per-request X-Request-Id.
//  3. A 401 on a first attempt is handed to the Coordinator (reactive
//     refresh). Every other failure is classified with apierr.Classify and
//     returned unchanged.
//
// # Refresh coordination
//
// The Coordinator guarantees that at most one refresh call is in flight.
// Requests that hit 401 while a refresh is running are parked in FIFO order
// and replayed once the refresh succeeds, or rejected with the refresh's
// classified error when it fails. Each request gets at most one
// refresh-and-retry cycle: a 401 on the replay is terminal.
//
// # Session loss
//
// A failed refresh, or an InvalidSessionError response outside the
// authentication flow, clears the session and publishes a
// policy.SessionLost intent through Options.OnSessionLost. The package never
// navigates on its own.
//
// Client is safe for concurrent use.
package transport
