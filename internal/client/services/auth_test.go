package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/apierr"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/policy"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/transport"
	"github.com/dmitrijs2005/sessionkeeper/internal/session"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var expiry = time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)

// ---- fakes ----

type fakeDoer struct {
	status int
	body   string
	err    error

	requests []*transport.Request
}

func (f *fakeDoer) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &transport.Response{Status: status, Body: []byte(f.body)}, nil
}

func (f *fakeDoer) last(t *testing.T) *transport.Request {
	t.Helper()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

type fakeSessions struct {
	established []time.Time
	cleared     int
	refreshes   int
	refreshErr  error
}

func (f *fakeSessions) Establish(ctx context.Context, expiry time.Time) {
	f.established = append(f.established, expiry)
}

func (f *fakeSessions) Clear(ctx context.Context) { f.cleared++ }

func (f *fakeSessions) Refresh(ctx context.Context) error {
	f.refreshes++
	return f.refreshErr
}

func decodeBody(t *testing.T, req *transport.Request) map[string]string {
	t.Helper()
	var m map[string]string
	require.NoError(t, json.Unmarshal(req.Body, &m))
	return m
}

// ---- tests ----

func TestSignInPassword_EstablishesSession(t *testing.T) {
	d := &fakeDoer{body: `{"isMfaRequired":false,"accessTokenExpiresAt":"2026-03-01T13:00:00Z","refreshTokenExpiresAt":"2026-03-08T12:00:00Z"}`}
	s := &fakeSessions{}
	svc := NewAuthService(d, s)

	resp, err := svc.SignInPassword(context.Background(), "user@example.com", []byte("secret"))
	require.NoError(t, err)
	assert.False(t, resp.IsMfaRequired)
	assert.Equal(t, []time.Time{expiry}, s.established)

	req := d.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/sessions", req.Path)
	assert.Equal(t, url.Values{"flow": []string{"password"}}, req.Query)
	assert.True(t, req.AuthFlow)
	if diff := cmp.Diff(map[string]string{"email": "user@example.com", "password": "secret"}, decodeBody(t, req)); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestSignInPassword_MfaRequiredDoesNotEstablish(t *testing.T) {
	d := &fakeDoer{body: `{"isMfaRequired":true}`}
	s := &fakeSessions{}
	svc := NewAuthService(d, s)

	resp, err := svc.SignInPassword(context.Background(), "user@example.com", []byte("secret"))
	require.NoError(t, err)
	assert.True(t, resp.IsMfaRequired)
	assert.Empty(t, s.established)
}

func TestSignInPassword_MissingExpiry(t *testing.T) {
	d := &fakeDoer{body: `{"isMfaRequired":false}`}
	s := &fakeSessions{}
	svc := NewAuthService(d, s)

	_, err := svc.SignInPassword(context.Background(), "u", []byte("p"))
	require.ErrorIs(t, err, ErrMissingExpiry)
	assert.Empty(t, s.established)
}

func TestSignInPassword_ErrorWrapped(t *testing.T) {
	d := &fakeDoer{err: apierr.New(apierr.InvalidCredentialsError, "")}
	s := &fakeSessions{}
	svc := NewAuthService(d, s)

	_, err := svc.SignInPassword(context.Background(), "u", []byte("p"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign in error:")
	assert.True(t, apierr.IsKind(err, apierr.InvalidCredentialsError))
	assert.Empty(t, s.established)
}

func TestSignInPassword_UndecodableBody(t *testing.T) {
	d := &fakeDoer{body: `not json`}
	svc := NewAuthService(d, &fakeSessions{})

	_, err := svc.SignInPassword(context.Background(), "u", []byte("p"))
	require.Error(t, err)
	assert.True(t, apierr.IsKind(err, apierr.InternalServerError))
}

func TestVerifyMfa(t *testing.T) {
	d := &fakeDoer{body: `{"accessTokenExpiresAt":"2026-03-01T13:00:00Z","refreshTokenExpiresAt":"2026-03-08T12:00:00Z"}`}
	s := &fakeSessions{}
	svc := NewAuthService(d, s)

	resp, err := svc.VerifyMfa(context.Background(), "user@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, expiry, resp.AccessTokenExpiresAt)
	assert.Equal(t, []time.Time{expiry}, s.established)

	req := d.last(t)
	assert.Equal(t, url.Values{"flow": []string{"mfa"}}, req.Query)
	assert.True(t, req.AuthFlow)
	assert.Equal(t, map[string]string{"email": "user@example.com", "otp": "123456"}, decodeBody(t, req))
}

func TestVerifyMfa_InvalidOtp(t *testing.T) {
	d := &fakeDoer{err: apierr.New(apierr.InvalidMfaOtpError, "")}
	s := &fakeSessions{}
	svc := NewAuthService(d, s)

	_, err := svc.VerifyMfa(context.Background(), "u", "000000")
	require.Error(t, err)
	assert.True(t, apierr.IsKind(err, apierr.InvalidMfaOtpError))
	assert.Empty(t, s.established)
}

func TestRefresh_Delegates(t *testing.T) {
	s := &fakeSessions{refreshErr: errors.New("boom")}
	svc := NewAuthService(&fakeDoer{}, s)

	require.EqualError(t, svc.Refresh(context.Background()), "boom")
	assert.Equal(t, 1, s.refreshes)
}

func TestSignOut(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "ok"},
		{name: "server error still clears", err: apierr.New(apierr.InternalServerError, ""), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDoer{err: tt.err, status: http.StatusNoContent}
			s := &fakeSessions{}
			svc := NewAuthService(d, s)

			err := svc.SignOut(context.Background())
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, 1, s.cleared)

			req := d.last(t)
			assert.Equal(t, http.MethodDelete, req.Method)
			assert.Equal(t, "/session", req.Path)
			assert.True(t, req.AuthFlow)
		})
	}
}

func TestSignOut_ExpiringSessionIsNotReportedLost(t *testing.T) {
	tests := []struct {
		name        string
		signOutCode int
		wantErr     bool
	}{
		{name: "server accepts", signOutCode: http.StatusNoContent},
		{name: "access token already rejected", signOutCode: http.StatusUnauthorized, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var refreshes, signOuts atomic.Int32
			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
				refreshes.Add(1)
				w.WriteHeader(http.StatusUnauthorized)
			})
			mux.HandleFunc("DELETE /api/v1/session", func(w http.ResponseWriter, r *http.Request) {
				signOuts.Add(1)
				w.WriteHeader(tt.signOutCode)
			})
			srv := httptest.NewServer(mux)
			t.Cleanup(srv.Close)

			now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			state := session.NewState()
			require.True(t, state.Establish(now.Add(2*time.Second)))

			var mu sync.Mutex
			var lost []policy.SessionLost
			client, err := transport.New(transport.Options{
				BaseURL:  srv.URL + "/api/v1",
				State:    state,
				Location: policy.NewRoute("/dashboard"),
				OnSessionLost: func(e policy.SessionLost) {
					mu.Lock()
					defer mu.Unlock()
					lost = append(lost, e)
				},
				Now: func() time.Time { return now },
			})
			require.NoError(t, err)

			svc := NewAuthService(client, client.Coordinator())
			err = svc.SignOut(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.False(t, errors.Is(err, transport.ErrSessionExpired))
			} else {
				require.NoError(t, err)
			}

			assert.EqualValues(t, 0, refreshes.Load())
			assert.EqualValues(t, 1, signOuts.Load())
			assert.False(t, state.IsAuthenticated())
			mu.Lock()
			assert.Empty(t, lost)
			mu.Unlock()
		})
	}
}
