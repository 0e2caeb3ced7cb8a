package cli

import (
	"context"
	"fmt"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"
)

// Account prints the signed-in user's profile.
func (a *App) Account(ctx context.Context) error {
	acc, err := a.accountService.Get(ctx)
	if err != nil {
		a.report(ctx, err)
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", acc.ID)
	fmt.Fprintf(w, "Email\t%s\n", acc.Email)
	fmt.Fprintf(w, "Name\t%s\n", acc.Name)
	fmt.Fprintf(w, "Created\t%s\n", acc.CreatedAt.Local().Format(time.RFC1123))
	return w.Flush()
}

// Burst fetches the account n times concurrently. With an expired access
// token all n requests share a single refresh.
func (a *App) Burst(ctx context.Context, n int) error {
	if n <= 0 {
		return fmt.Errorf("burst size must be positive, got %d", n)
	}

	var ok atomic.Int32
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if _, err := a.accountService.Get(ctx); err != nil {
				return err
			}
			ok.Add(1)
			return nil
		})
	}
	err := g.Wait()

	fmt.Fprintf(a.out, "%d/%d requests succeeded\n", ok.Load(), n)
	if err != nil {
		a.report(ctx, err)
	}
	return err
}

// Status prints the current session state.
func (a *App) Status(ctx context.Context) error {
	snap := a.state.Snapshot()

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Authenticated\t%t\n", snap.IsAuthenticated)
	if !snap.AccessTokenExpiry.IsZero() {
		fmt.Fprintf(w, "Token expires\t%s\n", snap.AccessTokenExpiry.Local().Format(time.RFC1123))
	}
	fmt.Fprintf(w, "Refreshing\t%t\n", snap.IsRefreshingToken)
	fmt.Fprintf(w, "Route\t%s\n", a.route.CurrentPath())
	return w.Flush()
}
