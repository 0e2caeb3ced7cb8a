package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/policy"
	"github.com/dmitrijs2005/sessionkeeper/internal/session"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

/*************
 * Fake API server
 *************/

type fakeAPI struct {
	srv *httptest.Server

	mu sync.Mutex
	// authorized is what the access token cookie would decide on a real
	// server. A successful refresh sets it.
	authorized         bool
	alwaysUnauthorized bool
	expiry             time.Time
	refreshStatus      int
	refreshBody        string
	refreshCSRF        string
	failStatus         int
	failBody           string
	accountCSRF        []string
	accountIDs         []string

	// gate, when set, holds every refresh call until it is closed.
	gate chan struct{}

	refreshes   atomic.Int32
	accountHits atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	api := &fakeAPI{expiry: t0.Add(3600 * time.Second)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sessions", api.handleRefresh)
	mux.HandleFunc("GET /api/v1/account", api.handleAccount)
	mux.HandleFunc("GET /api/v1/fail", api.handleFail)

	api.srv = httptest.NewServer(mux)
	t.Cleanup(api.srv.Close)
	return api
}

func (a *fakeAPI) baseURL() string { return a.srv.URL + "/api/v1" }

func (a *fakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	a.refreshes.Add(1)
	if r.URL.Query().Get("flow") != "refresh" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	gate := a.gate
	a.mu.Unlock()
	if gate != nil {
		<-gate
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.refreshStatus != 0 {
		w.WriteHeader(a.refreshStatus)
		_, _ = w.Write([]byte(a.refreshBody))
		return
	}

	a.authorized = true
	if a.refreshCSRF != "" {
		http.SetCookie(w, &http.Cookie{Name: CSRFCookieName, Value: a.refreshCSRF, Path: "/"})
	}
	writeJSON(w, http.StatusOK, SessionResponse{
		AccessTokenExpiresAt:  a.expiry,
		RefreshTokenExpiresAt: a.expiry.Add(24 * time.Hour),
	})
}

func (a *fakeAPI) handleAccount(w http.ResponseWriter, r *http.Request) {
	a.accountHits.Add(1)

	a.mu.Lock()
	a.accountCSRF = append(a.accountCSRF, r.Header.Get(CSRFHeaderName))
	a.accountIDs = append(a.accountIDs, r.Header.Get(RequestIDHeader))
	ok := a.authorized && !a.alwaysUnauthorized
	a.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": "user@example.com"})
}

func (a *fakeAPI) handleFail(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	w.WriteHeader(a.failStatus)
	_, _ = w.Write([]byte(a.failBody))
}

func (a *fakeAPI) set(fn func(a *fakeAPI)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

/*************
 * Test doubles
 *************/

type lostRecorder struct {
	mu     sync.Mutex
	events []policy.SessionLost
}

func (r *lostRecorder) record(e policy.SessionLost) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *lostRecorder) all() []policy.SessionLost {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]policy.SessionLost(nil), r.events...)
}

type memStore struct {
	mu    sync.Mutex
	saves []session.Persisted
}

func (s *memStore) Load(ctx context.Context) (session.Persisted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		return session.Persisted{}, nil
	}
	return s.saves[len(s.saves)-1], nil
}

func (s *memStore) Save(ctx context.Context, p session.Persisted) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, p)
	return nil
}

func (s *memStore) last() session.Persisted {
	p, _ := s.Load(context.Background())
	return p
}

type harness struct {
	api    *fakeAPI
	client *Client
	route  *policy.Route
	lost   *lostRecorder
	store  *memStore
}

// newHarness builds a client against a fresh fake API. The session starts
// authenticated with an expiry far enough away that no proactive refresh
// fires unless a test changes it.
func newHarness(t *testing.T, opts ...func(*Options)) *harness {
	t.Helper()

	h := &harness{
		api:   newFakeAPI(t),
		route: policy.NewRoute("/dashboard"),
		lost:  &lostRecorder{},
		store: &memStore{},
	}

	state := session.NewState()
	require.True(t, state.Establish(t0.Add(time.Hour)))

	o := Options{
		BaseURL:       h.api.baseURL(),
		State:         state,
		Store:         h.store,
		Location:      h.route,
		OnSessionLost: h.lost.record,
		Now:           func() time.Time { return t0 },
	}
	for _, fn := range opts {
		fn(&o)
	}

	c, err := New(o)
	require.NoError(t, err)
	h.client = c
	return h
}

func withCSRFCookie(t *testing.T, value string) func(*Options) {
	t.Helper()
	return func(o *Options) {
		jar, err := cookiejar.New(nil)
		require.NoError(t, err)
		u, err := url.Parse(o.BaseURL)
		require.NoError(t, err)
		jar.SetCookies(u, []*http.Cookie{{Name: CSRFCookieName, Value: value, Path: "/"}})
		o.HTTPClient = &http.Client{Jar: jar, Timeout: 5 * time.Second}
	}
}

func accountRequest() *Request {
	return &Request{Method: http.MethodGet, Path: "/account"}
}
