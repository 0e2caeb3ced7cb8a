package transport

import (
	"net/http"
	"net/url"
)

// CSRF cookie and header names used by the API.
const (
	CSRFCookieName  = "csrfToken"
	CSRFHeaderName  = "X-Csrf-Token"
	RequestIDHeader = "X-Request-Id"
)

// csrfToken returns the csrfToken cookie the jar holds for u, or "".
func csrfToken(jar http.CookieJar, u *url.URL) string {
	if jar == nil {
		return ""
	}
	for _, c := range jar.Cookies(u) {
		if c.Name == CSRFCookieName {
			return c.Value
		}
	}
	return ""
}
