package cli

import (
	"context"
	"fmt"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// SignIn prompts for email and password and, when the server asks for it,
// a one-time code. The shell sits on the sign-in route for the whole flow.
//
// The password is wiped before returning.
func (a *App) SignIn(ctx context.Context) error {
	a.route.Set(a.config.SignInPath)

	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer clear(password)

	resp, err := a.authService.SignInPassword(ctx, email, password)
	if err != nil {
		a.report(ctx, err)
		return err
	}

	if resp.IsMfaRequired {
		otp, err := getSimpleText(a.reader, "Enter the code we sent you", a.out)
		if err != nil {
			return err
		}
		if _, err := a.authService.VerifyMfa(ctx, email, otp); err != nil {
			a.report(ctx, err)
			return err
		}
	}

	a.setUserName(email)
	a.route.Set(homePath)
	fmt.Fprintln(a.out, "Signed in")
	return nil
}

// Refresh renews the access token on demand.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.authService.Refresh(ctx); err != nil {
		a.report(ctx, err)
		return err
	}
	fmt.Fprintf(a.out, "Session renewed until %s\n", a.state.AccessTokenExpiry().Local().Format("15:04:05"))
	return nil
}

// Logout ends the session on the server and locally. The local session is
// gone even when the server call fails.
func (a *App) Logout(ctx context.Context) error {
	err := a.authService.SignOut(ctx)
	a.setUserName("")
	a.route.Set(a.config.SignInPath)
	if err != nil {
		a.report(ctx, err)
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}
