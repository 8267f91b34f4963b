package rpc

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/Jeffail/gabs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rpcerr "github.com/bifrostrpc/bifrost/pkg/errors"
	"github.com/bifrostrpc/bifrost/pkg/session"
	"github.com/bifrostrpc/bifrost/pkg/transport"
)

// recorded is what a fake server saw of a request.
type recorded struct {
	method, path, rawPath string
	accept, contentType   string
	user, password        string
	body                  string
}

// fakeServer answers every call with the given status and body, and
// records what it was sent.
func fakeServer(t *testing.T, status int, body string) (*httptest.Server, *[]recorded) {
	var (
		mu   sync.Mutex
		seen []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := ioutil.ReadAll(r.Body)
		user, password, _ := r.BasicAuth()
		mu.Lock()
		seen = append(seen, recorded{
			method:      r.Method,
			path:        r.URL.Path,
			rawPath:     r.URL.EscapedPath(),
			accept:      r.Header.Get("Accept"),
			contentType: r.Header.Get("Content-Type"),
			user:        user,
			password:    password,
			body:        string(b),
		})
		mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	return srv, &seen
}

func newClient(t *testing.T, cfg Config) *Client {
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func closedAddr(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestDispatchSuccess(t *testing.T) {
	srv, seen := fakeServer(t, http.StatusOK, `{"ok": true}`)
	defer srv.Close()

	c := newClient(t, Config{URL: srv.URL})
	out, err := c.Dispatch(context.Background(), "ping", Params{}, nil)
	require.NoError(t, err)
	assert.Equal(t, NewSuccess(map[string]interface{}{"ok": true}), out)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "POST", req.method)
	assert.Equal(t, "/api.v1/call/ping", req.path)
	assert.Equal(t, "application/json", req.accept)
	assert.Equal(t, "application/json", req.contentType)
	assert.Equal(t, "{}", req.body)
}

func TestDispatchSendsParamsInOrder(t *testing.T) {
	srv, seen := fakeServer(t, http.StatusOK, `"cba"`)
	defer srv.Close()

	c := newClient(t, Config{URL: srv.URL + "/prefix"})
	params := Params{{"zeta", 1}, {"alpha", "two"}, {"input_", []string{"a", "b"}}}
	out, err := c.Dispatch(context.Background(), "get_reversed", params, nil)
	require.NoError(t, err)
	assert.Equal(t, NewSuccess("cba"), out)

	req := (*seen)[0]
	assert.Equal(t, "/prefix/api.v1/call/get_reversed", req.path)
	assert.Equal(t, `{"zeta":1,"alpha":"two","input_":["a","b"]}`, req.body)
}

func TestDispatchUnauthorized(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusUnauthorized, "bad token")
	defer srv.Close()

	out, err := newClient(t, Config{URL: srv.URL}).Dispatch(context.Background(), "whoami", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NewFailure(Unauthorized, "HTTP 401 Unauthorized: bad token"), out)
}

func TestDispatchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	out, err := newClient(t, Config{URL: srv.URL}).Dispatch(context.Background(), "ping", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NewFailure(Broken, "500 Internal Server Error: boom"), out)
}

func TestDispatchOtherStatusesAreBroken(t *testing.T) {
	for _, c := range []struct {
		status int
		body   string
		want   string
	}{
		{http.StatusNotFound, "no such method", "404 Not Found: no such method"},
		{http.StatusBadRequest, "input_ is required\n", "400 Bad Request: input_ is required"},
		{http.StatusNoContent, "", "204 No Content: "},
		{http.StatusForbidden, `{"error":"nope"}`, `403 Forbidden: {"error":"nope"}`},
	} {
		srv, _ := fakeServer(t, c.status, c.body)
		out, err := newClient(t, Config{URL: srv.URL}).Dispatch(context.Background(), "ping", nil, nil)
		srv.Close()
		require.NoError(t, err)
		assert.Equal(t, NewFailure(Broken, c.want), out, "status %d", c.status)
	}
}

func TestDispatchOutage(t *testing.T) {
	c := newClient(t, Config{URL: "http://" + closedAddr(t)})
	out, err := c.Dispatch(context.Background(), "ping", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Outage, out.Kind)
	assert.NotEmpty(t, out.Message)
	assert.Nil(t, out.Result)
}

func TestDispatchNetworkErrorMessage(t *testing.T) {
	tx := transport.Func(func(*http.Request) (*http.Response, error) {
		return nil, &netError{transport.NetworkError}
	})
	out, err := newClient(t, Config{URL: "http://127.0.0.1:5000", Transport: tx}).Dispatch(context.Background(), "ping", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NewFailure(Outage, transport.NetworkError), out)
}

type netError struct{ msg string }

func (e *netError) Error() string { return e.msg }

func TestDispatchOtherTransportErrorIsBroken(t *testing.T) {
	tx := transport.Func(func(*http.Request) (*http.Response, error) {
		return nil, &netError{"x509: certificate signed by unknown authority"}
	})
	out, err := newClient(t, Config{URL: "https://127.0.0.1:5000", Transport: tx}).Dispatch(context.Background(), "ping", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NewFailure(Broken, "System error: x509: certificate signed by unknown authority"), out)
}

func TestDispatchRaise(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(t, Config{URL: srv.URL, Policy: Raise})
	out, err := c.Dispatch(context.Background(), "ping", nil, nil)
	require.Error(t, err)
	assert.True(t, rpcerr.IsBroken(err))
	assert.Equal(t, "500 Internal Server Error: boom", err.Error())
	assert.Equal(t, Outcome{}, out)

	// unauthorized and outage are raised the same way
	unauth, _ := fakeServer(t, http.StatusUnauthorized, "bad token")
	defer unauth.Close()
	_, err = newClient(t, Config{URL: unauth.URL, Policy: Raise}).Dispatch(context.Background(), "whoami", nil, nil)
	assert.True(t, rpcerr.IsUnauthorized(err))

	_, err = newClient(t, Config{URL: "http://" + closedAddr(t), Policy: Raise}).Dispatch(context.Background(), "ping", nil, nil)
	assert.True(t, rpcerr.IsOutage(err))

	// success is handed back as usual
	ok, _ := fakeServer(t, http.StatusOK, "true")
	defer ok.Close()
	out, err = newClient(t, Config{URL: ok.URL, Policy: Raise}).Dispatch(context.Background(), "login", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NewSuccess(true), out)
}

func TestDispatchInvalidJSON(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK, "<html>")
	defer srv.Close()

	out, err := newClient(t, Config{URL: srv.URL}).Dispatch(context.Background(), "ping", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Broken, out.Kind)
	assert.True(t, strings.HasPrefix(out.Message, "Response was not valid JSON: "), out.Message)
}

func TestDispatchConverterFailures(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK, `{"name": 3}`)
	defer srv.Close()
	c := newClient(t, Config{URL: srv.URL})

	var pet struct {
		Name string `json:"name"`
	}
	out, err := c.Dispatch(context.Background(), "get_pet", nil, Decode(&pet))
	require.NoError(t, err)
	assert.Equal(t, Broken, out.Kind)
	assert.True(t, strings.HasPrefix(out.Message, "Response data from get_pet was invalid: "), out.Message)

	panicky := func(body *gabs.Container) (interface{}, error) {
		return body.Data().([]interface{}), nil
	}
	out, err = c.Dispatch(context.Background(), "get_pet", nil, panicky)
	require.NoError(t, err)
	assert.Equal(t, Broken, out.Kind)
	assert.True(t, strings.HasPrefix(out.Message, "Response data from get_pet was invalid: "), out.Message)
}

func TestDispatchKeepsLargeIntegers(t *testing.T) {
	tx := transport.Func(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Status: "200 OK", Body: stringBody(`{"id": 9007199254740993}`)}, nil
	})
	c := newClient(t, Config{URL: "http://127.0.0.1:5000", Transport: tx})

	var got struct {
		ID int64 `json:"id"`
	}
	out, err := c.Dispatch(context.Background(), "get_id", nil, Decode(&got))
	require.NoError(t, err)
	assert.Equal(t, Success, out.Kind)
	assert.Equal(t, int64(9007199254740993), got.ID)

	out, err = c.Dispatch(context.Background(), "get_id", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NewSuccess(map[string]interface{}{"id": json.Number("9007199254740993")}), out)

	out, err = c.Dispatch(context.Background(), "get_id", nil, Literal(map[string]interface{}{"id": 9007199254740992}))
	require.NoError(t, err)
	assert.Equal(t, Broken, out.Kind, "off by one is not equal")
}

func TestDispatchNoResponse(t *testing.T) {
	tx := transport.Func(func(*http.Request) (*http.Response, error) {
		return nil, nil
	})
	out, err := newClient(t, Config{URL: "http://127.0.0.1:5000", Transport: tx}).Dispatch(context.Background(), "ping", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NewFailure(Broken, "System error: transport returned no response"), out)
}

func TestDispatchUnencodableParams(t *testing.T) {
	srv, seen := fakeServer(t, http.StatusOK, "true")
	defer srv.Close()

	out, err := newClient(t, Config{URL: srv.URL}).Dispatch(context.Background(), "ping", Params{{"ch", make(chan int)}}, nil)
	require.NoError(t, err)
	assert.Equal(t, Broken, out.Kind)
	assert.Empty(t, *seen, "nothing is sent")
}

func TestDispatchMethodNames(t *testing.T) {
	srv, seen := fakeServer(t, http.StatusOK, "true")
	defer srv.Close()
	c := newClient(t, Config{URL: srv.URL})

	for _, bad := range []string{"", ".", "..", "a/b", "tab\there"} {
		out, err := c.Dispatch(context.Background(), bad, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, Broken, out.Kind, "%q", bad)
	}
	assert.Empty(t, *seen)

	out, err := c.Dispatch(context.Background(), "odd name?", nil, nil)
	require.NoError(t, err)
	assert.True(t, out.OK())
	require.Len(t, *seen, 1)
	assert.Equal(t, "/api.v1/call/odd%20name%3F", (*seen)[0].rawPath)
	assert.Equal(t, "/api.v1/call/odd name?", (*seen)[0].path)
}

func TestDispatchIsRepeatable(t *testing.T) {
	srv, seen := fakeServer(t, http.StatusOK, `[1, 2, 3]`)
	defer srv.Close()
	c := newClient(t, Config{URL: srv.URL})

	params := Params{{"input_", "abc"}}
	first, err := c.Dispatch(context.Background(), "get_list", params, nil)
	require.NoError(t, err)
	second, err := c.Dispatch(context.Background(), "get_list", params, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, *seen, 2)
	assert.Equal(t, (*seen)[0], (*seen)[1])
}

func TestDispatchBasicAuth(t *testing.T) {
	srv, seen := fakeServer(t, http.StatusOK, "true")
	defer srv.Close()

	c := newClient(t, Config{URL: srv.URL, Username: "alice", Password: "s3cret"})
	_, err := c.Dispatch(context.Background(), "ping", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", (*seen)[0].user)
	assert.Equal(t, "s3cret", (*seen)[0].password)
}

func TestDispatchKeepsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api.v1/call/login":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "the_one", Path: "/"})
			w.Write([]byte("true"))
		case "/api.v1/call/whoami":
			if _, err := r.Cookie("session"); err != nil {
				http.Error(w, "Not logged in", http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`"the_one"`))
		}
	}))
	defer srv.Close()

	c := newClient(t, Config{URL: srv.URL, Session: session.NewMemory()})
	out, err := c.Dispatch(context.Background(), "whoami", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NewFailure(Unauthorized, "HTTP 401 Unauthorized: Not logged in"), out)

	out, err = c.Dispatch(context.Background(), "login", nil, Literal(true))
	require.NoError(t, err)
	assert.Equal(t, NewSuccess(true), out)

	out, err = c.Dispatch(context.Background(), "whoami", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NewSuccess("the_one"), out)
}

func TestNewRejectsBadConfig(t *testing.T) {
	for _, cfg := range []Config{
		{},
		{URL: "127.0.0.1:5000"},
		{URL: "/relative"},
		{Host: "127.0.0.1"},
	} {
		_, err := New(cfg)
		assert.Error(t, err, "%+v", cfg)
	}

	c := newClient(t, Config{Host: "::1", Port: 5000})
	assert.Equal(t, "http://[::1]:5000", c.endpoint)
}

func TestConfigFromEnv(t *testing.T) {
	old, had := os.LookupEnv(EnvServicePort)
	defer func() {
		if had {
			os.Setenv(EnvServicePort, old)
		} else {
			os.Unsetenv(EnvServicePort)
		}
	}()

	os.Unsetenv(EnvServicePort)
	_, err := ConfigFromEnv()
	assert.Error(t, err)

	os.Setenv(EnvServicePort, "not-a-port")
	_, err = ConfigFromEnv()
	assert.Error(t, err)

	os.Setenv(EnvServicePort, "41234")
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	endpoint, err := cfg.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:41234", endpoint)
}

func TestParamsRoundTrip(t *testing.T) {
	params := Params{
		{"input_", "abc"},
		{"count", 3.0},
		{"flag", false},
		{"nothing", nil},
		{"nested", map[string]interface{}{"b": []interface{}{"x", 1.5}}},
	}
	b, err := json.Marshal(params)
	require.NoError(t, err)
	assert.Equal(t, `{"input_":"abc","count":3,"flag":false,"nothing":null,"nested":{"b":["x",1.5]}}`, string(b))

	var back Params
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, Params{
		{"input_", "abc"},
		{"count", json.Number("3")},
		{"flag", false},
		{"nothing", nil},
		{"nested", map[string]interface{}{"b": []interface{}{"x", json.Number("1.5")}}},
	}, back)

	v, ok := back.Get("count")
	assert.True(t, ok)
	assert.Equal(t, json.Number("3"), v)

	// integers beyond float64 precision survive a round trip
	var big Params
	require.NoError(t, json.Unmarshal([]byte(`{"id":9007199254740993}`), &big))
	b, err = json.Marshal(big)
	require.NoError(t, err)
	assert.Equal(t, `{"id":9007199254740993}`, string(b))

	_, err = json.Marshal(Params{{"a", 1}, {"a", 2}})
	assert.Error(t, err, "duplicate names")

	b, err = json.Marshal(Params(nil))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}

func TestNewCallCopiesParams(t *testing.T) {
	params := Params{{"input_", "abc"}}
	call, err := NewCall("get_reversed", params)
	require.NoError(t, err)
	params[0].Value = "changed"
	assert.Equal(t, Params{{"input_", "abc"}}, call.Params())
	assert.Equal(t, "get_reversed", call.Method())
}
