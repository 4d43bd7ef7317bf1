package cli

import (
	"context"
	"fmt"
	"time"
)

const syncWaitTimeout = 30 * time.Second

// Sync runs a full sync and waits for it to finish.
func (a *App) Sync(ctx context.Context, _ []string) error {
	if !a.isAuthorized() {
		fmt.Fprintln(a.out, "Sync needs an online login")
		return errNotLoggedIn
	}
	a.engine.RequestFullSync()

	wctx, cancel := context.WithTimeout(ctx, syncWaitTimeout)
	defer cancel()
	if err := a.engine.Wait(wctx); err != nil {
		return err
	}
	return a.Status(ctx, nil)
}

// Status prints what the sync engine reports.
func (a *App) Status(_ context.Context, _ []string) error {
	s := a.engine.Status()
	fmt.Fprintf(a.out, "Mode: %s\n", a.mode())
	fmt.Fprintf(a.out, "Busy: %t\n", s.IsBusy)
	fmt.Fprintf(a.out, "Pending changes: %d\n", len(a.engine.Pending()))
	if s.LastSyncDate != nil {
		fmt.Fprintf(a.out, "Last sync: %s\n", s.LastSyncDate.Local().Format(time.DateTime))
	} else {
		fmt.Fprintln(a.out, "Last sync: never")
	}
	if s.LastSyncError != nil {
		fmt.Fprintf(a.out, "Last error: %v\n", s.LastSyncError)
	}
	return nil
}
