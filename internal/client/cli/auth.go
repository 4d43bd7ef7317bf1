package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/habitsync/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts the user for an email and password and attempts to create
// a new account via the AuthService.
//
// On success it prints "Success!" and returns nil. The password byte slice
// is securely wiped before returning.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Register(ctx, userName, password); err != nil {
		fmt.Fprintf(a.out, "Registration failed: %v\n", err)
		return err
	}

	fmt.Fprintln(a.out, "Success!")
	return nil
}

// Login prompts the user for credentials and tries to authenticate.
//
// The method first attempts an online login. If the server is unavailable
// it falls back to offline login against the locally cached verifier.
// A successful login hands the account to the sync engine; an online one
// also activates sync.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	online := true
	accountID, err := a.authService.OnlineLogin(ctx, userName, password)
	if err != nil {
		if !errors.Is(err, common.ErrUnavailable) {
			fmt.Fprintf(a.out, "Login unsuccessful: %v\n", err)
			return err
		}
		fmt.Fprintln(a.out, "Server unavailable, trying offline login...")
		online = false
		accountID, err = a.authService.OfflineLogin(ctx, userName, password)
		if err != nil {
			fmt.Fprintf(a.out, "Offline login unsuccessful: %v\n", err)
			a.setMode(ModeDisabled)
			return err
		}
	}

	if err := a.engine.ChangeAccount(ctx, accountID); err != nil {
		a.logger.Error(ctx, "change sync account", "error", err)
		return err
	}

	a.mu.Lock()
	a.accountID = accountID
	a.userName = userName
	a.authorized = online
	a.mu.Unlock()

	if online {
		fmt.Fprintln(a.out, "Login successful")
		a.goOnline(ctx)
	} else {
		fmt.Fprintln(a.out, "Offline login successful, changes will sync after the next online login")
		a.setMode(ModeOffline)
	}
	return nil
}

// Logout stops syncing, clears locally cached credentials and forgets the
// session. Pending changes stay queued for the next login.
func (a *App) Logout(ctx context.Context) error {
	a.stopWatching()
	a.engine.DeactivateSync()

	if err := a.authService.ClearOfflineData(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	a.accountID = ""
	a.userName = ""
	a.authorized = false
	a.mu.Unlock()
	return nil
}
