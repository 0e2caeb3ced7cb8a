package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/apierr"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/policy"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/session"
	"github.com/google/uuid"
)

// ErrSessionExpired is returned, wrapped together with the refresh's
// classified error, when a proactive refresh fails and the request is
// therefore not sent.
var ErrSessionExpired = errors.New("session expired, please sign in again")

const (
	DefaultRefreshLeeway = 5 * time.Second
	DefaultTimeout       = 30 * time.Second
	DefaultRefreshPath   = "/sessions"

	maxBodySize = 10 << 20
)

// Options configures a Client. Only BaseURL is required.
type Options struct {
	BaseURL string
	// HTTPClient must carry a cookie jar for the session cookies to flow.
	// When nil a client with a fresh jar and Timeout is created.
	HTTPClient *http.Client
	Timeout    time.Duration

	// State defaults to an unauthenticated session. Store, when set,
	// receives the persisted flags after every transition.
	State *session.State
	Store session.Store

	Policy   policy.Policy
	Location policy.Location
	// OnSessionLost is called once per unrecoverable session loss.
	OnSessionLost func(policy.SessionLost)

	RefreshLeeway time.Duration
	RefreshPath   string

	Logger  logging.Logger
	Metrics *metrics.Metrics

	Now   func() time.Time
	NewID func() string
}

// Client sends API requests and keeps the session alive.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	state    *session.State
	coord    *Coordinator
	policy   policy.Policy
	location policy.Location
	notify   func(policy.SessionLost)

	leeway      time.Duration
	refreshPath string

	logger  logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("transport: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("transport: invalid base URL: %w", err)
	}

	c := &Client{
		baseURL:     base,
		http:        opts.HTTPClient,
		state:       opts.State,
		policy:      opts.Policy,
		location:    opts.Location,
		notify:      opts.OnSessionLost,
		leeway:      opts.RefreshLeeway,
		refreshPath: opts.RefreshPath,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.Now,
		newID:       opts.NewID,
	}

	if c.http == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Jar: jar, Timeout: timeout}
	}
	if c.state == nil {
		c.state = session.NewState()
	}
	if c.policy == (policy.Policy{}) {
		c.policy = policy.New("", "")
	}
	if c.location == nil {
		c.location = policy.NewRoute("/")
	}
	if c.notify == nil {
		c.notify = func(policy.SessionLost) {}
	}
	if c.leeway == 0 {
		c.leeway = DefaultRefreshLeeway
	}
	if c.refreshPath == "" {
		c.refreshPath = DefaultRefreshPath
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	c.logger = c.logger.With("component", "transport")
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}

	c.coord = NewCoordinator(CoordinatorConfig{
		State:            c.state,
		Store:            opts.Store,
		Refresh:          c.refreshSession,
		Replay:           c.replay,
		OnRefreshFailure: c.refreshFailed,
		Logger:           c.logger,
		Metrics:          c.metrics,
		Now:              c.now,
	})

	return c, nil
}

// State exposes the session for reading. Writers go through the
// Coordinator.
func (c *Client) State() *session.State { return c.state }

// Coordinator returns the refresh coordinator owning the session state.
func (c *Client) Coordinator() *Coordinator { return c.coord }

// Do sends req through the pipeline. A non-2xx response is returned as an
// error carrying an apierr.Error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	r := req.clone()
	if r.ID == "" {
		r.ID = c.newID()
	}
	return c.do(ctx, r, 0)
}

// DoJSON is Do followed by decoding the response body into out, if out is
// not nil.
func (c *Client) DoJSON(ctx context.Context, req *Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return apierr.New(apierr.InternalServerError, apierr.GenericMessage)
	}
	return nil
}

// replay is the coordinator's way back into the pipeline. The attempt
// counter makes a second 401 terminal.
func (c *Client) replay(ctx context.Context, req *Request) (*Response, error) {
	return c.do(ctx, req, 1)
}

func (c *Client) do(ctx context.Context, req *Request, attempt int) (*Response, error) {
	exempt := c.exempt(req)

	if !exempt && c.state.NeedsRefresh(c.now(), c.leeway) {
		if err := c.coord.Proactive(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.OK() {
		return resp, nil
	}

	if resp.Status == http.StatusUnauthorized && !exempt && attempt == 0 {
		c.logger.Debug(ctx, "unauthorized, refreshing", "request", req.String(), "request_id", req.ID)
		return c.coord.Reactive(ctx, req)
	}

	classified := apierr.Classify(apierr.Failure{Received: true, Status: resp.Status, Body: resp.Body})
	c.logger.Debug(ctx, "request failed",
		"request", req.String(), "request_id", req.ID, "status", resp.Status,
		"kind", classified.Kind.String(), "attempt", attempt)

	if !exempt {
		c.apply(ctx, c.policy.AfterResponse(classified, c.location.CurrentPath()))
	}
	return nil, classified
}

// exempt reports whether refresh and session-loss handling is skipped for
// req: auth-flow requests, and any request made from an auth-flow route.
func (c *Client) exempt(req *Request) bool {
	return req.AuthFlow || c.policy.IsAuthPath(c.location.CurrentPath())
}

// send performs a single HTTP exchange. Only failures without a response
// are returned as errors; any status code yields a Response.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, c.unanswered(ctx, req, apierr.Failure{Unsent: true, Err: err})
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.ObserveStatus(0)
		return nil, c.unanswered(ctx, req, apierr.Failure{Err: err})
	}
	defer httpResp.Body.Close()
	c.metrics.ObserveStatus(httpResp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize+1))
	if err != nil {
		return nil, c.unanswered(ctx, req, apierr.Failure{Err: fmt.Errorf("failed to read response body: %w", err)})
	}
	if len(body) > maxBodySize {
		c.logger.Warn(ctx, "response body truncated",
			"request", req.String(), "request_id", req.ID, "limit", maxBodySize)
		body = body[:maxBodySize]
	}

	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: body}, nil
}

func (c *Client) build(ctx context.Context, req *Request) (*http.Request, error) {
	u := c.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	if req.sent != nil {
		ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
			WroteRequest: func(httptrace.WroteRequestInfo) { req.markSent() },
		})
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}
	httpReq.Header.Set(RequestIDHeader, req.ID)
	if token := csrfToken(c.http.Jar, u); token != "" {
		httpReq.Header.Set(CSRFHeaderName, token)
	}
	return httpReq, nil
}

func (c *Client) unanswered(ctx context.Context, req *Request, f apierr.Failure) error {
	classified := apierr.Classify(f)
	c.logger.Warn(ctx, "request not answered",
		"request", req.String(), "request_id", req.ID, "unsent", f.Unsent, "err", f.Err)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", classified, ctxErr)
	}
	return classified
}

// refreshSession calls the refresh endpoint and returns the new access
// token expiry. Failures are apierr.Error values; a bare 401 means the
// refresh token itself is no longer valid.
func (c *Client) refreshSession(ctx context.Context) (time.Time, error) {
	req := &Request{
		Method:   http.MethodPost,
		Path:     c.refreshPath,
		Query:    url.Values{"flow": []string{"refresh"}},
		AuthFlow: true,
		ID:       c.newID(),
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return time.Time{}, err
	}

	if !resp.OK() {
		classified := apierr.Classify(apierr.Failure{Received: true, Status: resp.Status, Body: resp.Body})
		if resp.Status == http.StatusUnauthorized && classified.Kind == apierr.InternalServerError {
			classified = apierr.New(apierr.InvalidSessionError, "")
		}
		return time.Time{}, classified
	}

	var sr SessionResponse
	if err := resp.Decode(&sr); err != nil || sr.AccessTokenExpiresAt.IsZero() {
		c.logger.Error(ctx, "refresh response without expiry", "request_id", req.ID, "err", err)
		return time.Time{}, apierr.New(apierr.InternalServerError, apierr.GenericMessage)
	}
	return sr.AccessTokenExpiresAt, nil
}

func (c *Client) refreshFailed(ctx context.Context, reason apierr.Error) {
	c.apply(ctx, c.policy.AfterRefreshFailure(reason, c.location.CurrentPath()))
}

// apply carries out a session-loss decision.
func (c *Client) apply(ctx context.Context, d policy.Decision) {
	if !d.ClearSession {
		return
	}
	c.coord.Clear(ctx)
	c.metrics.SessionLost(d.Reason.Kind.String())
	c.logger.Warn(ctx, "session lost", "kind", d.Reason.Kind.String(), "redirect", d.Redirect != nil)
	if d.Redirect != nil {
		c.notify(*d.Redirect)
	}
}
