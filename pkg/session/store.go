// Package session keeps cookies between dispatches, so that a client
// can log in with one call and be recognised on the next.
package session

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// Store is consulted by a transport before and after every call. A
// Store belongs to a single client.
type Store interface {
	// Cookies returns the cookies to send with a request to u.
	Cookies(u *url.URL) ([]*http.Cookie, error)
	// SetCookies records the cookies a response from u asked to set.
	SetCookies(u *url.URL, cookies []*http.Cookie) error
}

// Nop is the store used when no session is configured: nothing is
// sent and nothing is kept.
var Nop Store = nop{}

type nop struct{}

func (nop) Cookies(*url.URL) ([]*http.Cookie, error)   { return nil, nil }
func (nop) SetCookies(*url.URL, []*http.Cookie) error { return nil }

// Memory keeps cookies for the lifetime of the process.
type Memory struct {
	jar *cookiejar.Jar
}

func NewMemory() *Memory {
	// cookiejar.New never returns a non-nil error
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &Memory{jar: jar}
}

// The jar does its own locking, so read-modify-write of a single
// SetCookies call is already atomic.
func (m *Memory) Cookies(u *url.URL) ([]*http.Cookie, error) {
	return m.jar.Cookies(u), nil
}

func (m *Memory) SetCookies(u *url.URL, cookies []*http.Cookie) error {
	if len(cookies) > 0 {
		m.jar.SetCookies(u, cookies)
	}
	return nil
}
