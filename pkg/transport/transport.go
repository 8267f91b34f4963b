// Package transport holds the bindings a dispatch can be carried
// over. A binding delivers exactly one request and reports either
// the response or the error that prevented one; it never retries.
package transport

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/bifrostrpc/bifrost/pkg/session"
)

// Transport is anything that can deliver a request. *http.Client's
// Transport field (an http.RoundTripper) already satisfies it.
type Transport interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// Func adapts a function to a Transport.
type Func func(*http.Request) (*http.Response, error)

func (f Func) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// HTTP delivers requests with a net/http client. Built for js/wasm,
// net/http is implemented on the browser's Fetch API, so this is also
// the browser binding.
type HTTP struct {
	client  *http.Client
	session session.Store
}

// NewHTTP returns a binding using client (http.DefaultClient if nil)
// that replays and records cookies through store (session.Nop if nil).
// The client's own Jar, if any, is left alone; give the store the job
// instead.
func NewHTTP(client *http.Client, store session.Store) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	if store == nil {
		store = session.Nop
	}
	return &HTTP{client: client, session: store}
}

func (t *HTTP) RoundTrip(req *http.Request) (*http.Response, error) {
	cookies, err := t.session.Cookies(req.URL)
	if err != nil {
		return nil, errors.Wrap(err, "reading session")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	if err := t.session.SetCookies(req.URL, resp.Cookies()); err != nil {
		resp.Body.Close()
		return nil, errors.Wrap(err, "saving session")
	}
	return resp, nil
}
