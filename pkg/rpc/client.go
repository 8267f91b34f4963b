package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	api "github.com/bifrostrpc/bifrost/pkg/http"
	"github.com/bifrostrpc/bifrost/pkg/session"
	"github.com/bifrostrpc/bifrost/pkg/transport"
)

// EnvServicePort names the environment variable holding the port of
// a service listening on the loopback address.
const EnvServicePort = "DEMO_SERVICE_PORT"

// Dispatcher is anything that can deliver a call and classify what
// came back. *Client is the real one; the remote package has
// decorators and a mock.
type Dispatcher interface {
	Dispatch(ctx context.Context, method string, params Params, conv Converter) (Outcome, error)
}

type Config struct {
	// URL is the base address of the service, e.g.
	// http://127.0.0.1:5000. If empty, Host and Port are used.
	URL  string
	Host string
	Port int

	// Username and Password, if set, are sent as HTTP basic auth.
	Username string
	Password string

	// Session stores cookies for the default transport. It is ignored
	// when Transport is given, since that transport keeps its own.
	Session   session.Store
	Transport transport.Transport

	Policy Policy
	Logger log.Logger
}

// ConfigFromEnv returns the config for a service on 127.0.0.1 at the
// port in $DEMO_SERVICE_PORT.
func ConfigFromEnv() (Config, error) {
	s := os.Getenv(EnvServicePort)
	if s == "" {
		return Config{}, errors.Errorf("$%s is not set", EnvServicePort)
	}
	port, err := strconv.Atoi(s)
	if err != nil || port <= 0 || port > 65535 {
		return Config{}, errors.Errorf("$%s is not a port number: %q", EnvServicePort, s)
	}
	return Config{Host: "127.0.0.1", Port: port}, nil
}

// Endpoint is the base URL the config points at.
func (c Config) Endpoint() (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}
	if c.Host == "" || c.Port == 0 {
		return "", errors.New("no URL, and no host and port, given")
	}
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), nil
}

type Client struct {
	endpoint  string
	router    *mux.Router
	transport transport.Transport
	auth      *url.Userinfo
	policy    Policy
	logger    log.Logger
}

var _ Dispatcher = &Client{}

func New(cfg Config) (*Client, error) {
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}
	// fail now rather than on every call
	if _, err := api.MakeURL(endpoint, api.NewAPIRouter(), api.Call, api.MethodVar, "ping"); err != nil {
		return nil, err
	}

	tx := cfg.Transport
	if tx == nil {
		tx = transport.NewHTTP(nil, cfg.Session)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	var auth *url.Userinfo
	if cfg.Username != "" || cfg.Password != "" {
		auth = url.UserPassword(cfg.Username, cfg.Password)
	}

	return &Client{
		endpoint:  endpoint,
		router:    api.NewAPIRouter(),
		transport: tx,
		auth:      auth,
		policy:    cfg.Policy,
		logger:    logger,
	}, nil
}

// Dispatch calls method with params, and converts a successful
// response with conv (Identity if nil). Under the Return policy the
// error is always nil; under Raise, failures come back as a
// *errors.Error from this module's errors package instead.
func (c *Client) Dispatch(ctx context.Context, method string, params Params, conv Converter) (Outcome, error) {
	begin := time.Now()
	outcome := c.dispatch(ctx, method, params, conv)
	c.logger.Log("method", method, "outcome", outcome.Kind, "took", time.Since(begin))
	return c.policy.apply(outcome)
}

func (c *Client) dispatch(ctx context.Context, method string, params Params, conv Converter) Outcome {
	call, err := NewCall(method, params)
	if err != nil {
		return NewFailure(Broken, err.Error())
	}
	req, err := c.newRequest(ctx, call)
	if err != nil {
		return NewFailure(Broken, err.Error())
	}
	resp, err := c.transport.RoundTrip(req)
	return Classify(call.Method(), resp, err, conv)
}

// newRequest builds the POST for call. Nothing is sent if the params
// can't be encoded.
func (c *Client) newRequest(ctx context.Context, call Call) (*http.Request, error) {
	u, err := api.MakeURL(c.endpoint, c.router, api.Call, api.MethodVar, call.Method())
	if err != nil {
		return nil, errors.Wrap(err, "constructing URL")
	}

	body, err := json.Marshal(call.Params())
	if err != nil {
		return nil, errors.Wrapf(err, "encoding params for %s", call.Method())
	}

	req, err := http.NewRequest("POST", u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "constructing request %s", u)
	}
	req = req.WithContext(ctx)

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.auth != nil {
		password, _ := c.auth.Password()
		req.SetBasicAuth(c.auth.Username(), password)
	}
	return req, nil
}
