package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request describes an API call. It is never modified by the pipeline, so
// the same value can be replayed after a token refresh.
type Request struct {
	Method string
	// Path is relative to the client's base URL, e.g. "/account".
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
	// AuthFlow marks sign-in, sign-up, refresh and sign-out calls. They are
	// exempt from proactive refresh, reactive refresh and the session-loss
	// policy.
	AuthFlow bool
	// ID correlates retries of the same call. Do fills it when empty.
	ID string

	// sent, when set, is called once the request has been written to the
	// connection. The coordinator uses it to keep replays in order.
	sent func()
}

// NewJSONRequest builds a request whose body is payload encoded as JSON.
// A nil payload produces a request without a body.
func NewJSONRequest(method, path string, payload any) (*Request, error) {
	r := &Request{Method: method, Path: path}
	if payload == nil {
		return r, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %s: %w", method, path, err)
	}
	r.Body = body
	r.Header = http.Header{"Content-Type": []string{"application/json"}}
	return r, nil
}

func (r *Request) clone() *Request {
	c := *r
	if r.Query != nil {
		c.Query = url.Values{}
		for k, v := range r.Query {
			c.Query[k] = append([]string(nil), v...)
		}
	}
	c.Header = r.Header.Clone()
	return &c
}

func (r *Request) markSent() {
	if r.sent != nil {
		r.sent()
	}
}

func (r *Request) String() string {
	if len(r.Query) == 0 {
		return r.Method + " " + r.Path
	}
	return r.Method + " " + r.Path + "?" + r.Query.Encode()
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// SessionResponse is returned by the refresh and sign-in endpoints.
type SessionResponse struct {
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}
