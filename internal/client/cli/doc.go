// Package cli provides the interactive sessionkeeper shell.
//
// App wires configuration, the persisted session, the transport and the
// services, then runs a REPL (App.Root) that blocks until the user exits.
// The shell keeps a current route: the sign-in route during the sign-in
// flow and after a session loss, "/" otherwise. The transport reads it to
// decide whether a request belongs to the authentication flow.
//
// Commands: signin, status, account, burst, refresh, logout, exit.
package cli
