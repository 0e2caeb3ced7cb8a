package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	if !a.isLoggedIn() {
		return "(signed out)"
	}
	if name := a.currentUserName(); name != "" {
		return fmt.Sprintf("(%s)", name)
	}
	return "(signed in)"
}

// Root runs the interactive shell until the user exits.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to sessionkeeper (type 'help' for commands)")
	if a.isLoggedIn() {
		fmt.Fprintln(a.out, "Restored previous session")
	}
	runREPL(ctx, a, a.getStatus, a.reader)
}
