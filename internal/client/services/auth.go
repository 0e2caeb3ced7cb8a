// Package services contains application services for the sessionkeeper
// client. This file defines the authentication service: password sign-in,
// MFA verification, on-demand refresh and sign-out.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/apierr"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/transport"
)

// ErrMissingExpiry is returned when the server reports a session without an
// access token expiry.
var ErrMissingExpiry = errors.New("session response has no access token expiry")

// Doer sends a request through the transport pipeline.
type Doer interface {
	Do(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// SessionKeeper owns the session state. It is implemented by
// *transport.Coordinator.
type SessionKeeper interface {
	Establish(ctx context.Context, expiry time.Time)
	Clear(ctx context.Context)
	Refresh(ctx context.Context) error
}

// SignInResponse is returned by the password sign-in flow. When
// IsMfaRequired is set the expiries are empty and VerifyMfa must follow.
type SignInResponse struct {
	IsMfaRequired         bool      `json:"isMfaRequired"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt,omitempty"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt,omitempty"`
}

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - SignInPassword: start a session with email and password. A response
//     asking for MFA does not establish the session.
//   - VerifyMfa: complete sign-in with a one-time code.
//   - Refresh: renew the access token now.
//   - SignOut: end the session on the server and locally.
type AuthService interface {
	SignInPassword(ctx context.Context, email string, password []byte) (*SignInResponse, error)
	VerifyMfa(ctx context.Context, email, otp string) (*transport.SessionResponse, error)
	Refresh(ctx context.Context) error
	SignOut(ctx context.Context) error
}

type authService struct {
	doer     Doer
	sessions SessionKeeper
}

// NewAuthService constructs an AuthService sending through doer and
// recording sessions in sessions.
func NewAuthService(doer Doer, sessions SessionKeeper) AuthService {
	return &authService{doer: doer, sessions: sessions}
}

func (a *authService) SignInPassword(ctx context.Context, email string, password []byte) (*SignInResponse, error) {
	req, err := sessionRequest("password", map[string]string{
		"email":    email,
		"password": string(password),
	})
	if err != nil {
		return nil, err
	}

	var resp SignInResponse
	if err := doJSON(ctx, a.doer, req, &resp); err != nil {
		return nil, fmt.Errorf("sign in error: %w", err)
	}
	if resp.IsMfaRequired {
		return &resp, nil
	}
	if resp.AccessTokenExpiresAt.IsZero() {
		return nil, ErrMissingExpiry
	}

	a.sessions.Establish(ctx, resp.AccessTokenExpiresAt)
	return &resp, nil
}

func (a *authService) VerifyMfa(ctx context.Context, email, otp string) (*transport.SessionResponse, error) {
	req, err := sessionRequest("mfa", map[string]string{
		"email": email,
		"otp":   otp,
	})
	if err != nil {
		return nil, err
	}

	var resp transport.SessionResponse
	if err := doJSON(ctx, a.doer, req, &resp); err != nil {
		return nil, fmt.Errorf("mfa verification error: %w", err)
	}
	if resp.AccessTokenExpiresAt.IsZero() {
		return nil, ErrMissingExpiry
	}

	a.sessions.Establish(ctx, resp.AccessTokenExpiresAt)
	return &resp, nil
}

func (a *authService) Refresh(ctx context.Context) error {
	return a.sessions.Refresh(ctx)
}

// SignOut deletes the server session and clears the local one. The local
// session is cleared even when the server call fails.
func (a *authService) SignOut(ctx context.Context) error {
	defer a.sessions.Clear(ctx)

	// An expiring token must not trigger a refresh whose failure would be
	// reported as a lost session.
	req := &transport.Request{Method: http.MethodDelete, Path: "/session", AuthFlow: true}
	if _, err := a.doer.Do(ctx, req); err != nil {
		return fmt.Errorf("sign out error: %w", err)
	}
	return nil
}

func sessionRequest(flow string, payload any) (*transport.Request, error) {
	req, err := transport.NewJSONRequest(http.MethodPost, "/sessions", payload)
	if err != nil {
		return nil, err
	}
	req.Query = url.Values{"flow": []string{flow}}
	req.AuthFlow = true
	return req, nil
}

// doJSON sends req and decodes the body into out.
func doJSON(ctx context.Context, d Doer, req *transport.Request, out any) error {
	resp, err := d.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Decode(out); err != nil {
		return apierr.New(apierr.InternalServerError, apierr.GenericMessage)
	}
	return nil
}
