package transport

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Logging logs every request delivered through next, with its status
// or error.
func Logging(next Transport, logger log.Logger) Transport {
	return &logging{logger: logger, transport: next}
}

type logging struct {
	logger    log.Logger
	transport Transport
}

func (t *logging) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.transport.RoundTrip(req)
	if err == nil {
		t.logger.Log("url", req.URL.String(), "status", res.Status)
	} else {
		t.logger.Log("url", req.URL.String(), "err", err.Error())
	}
	return res, err
}

const (
	minLimit  = 0.1
	backOffBy = 2.0
	recoverBy = 1.5
)

// RateLimiters keeps a token bucket per host, so a client issuing
// many concurrent dispatches doesn't flood its server.
//
// A Transport obtained with `RoundTripper(next, host)` reacts to `HTTP
// 429 Too many requests` by halving the limit for that host, and to a
// successful response by raising it back towards RPS. It never resends
// a request: the 429 is handed back like any other response.
type RateLimiters struct {
	RPS     float64
	Burst   int
	Logger  log.Logger
	perHost map[string]*rate.Limiter
	mu      sync.Mutex
}

func (limiters *RateLimiters) clip(limit float64) float64 {
	if limit < minLimit {
		return minLimit
	}
	if limit > limiters.RPS {
		return limiters.RPS
	}
	return limit
}

// limiter must be called with mu held.
func (limiters *RateLimiters) limiter(host string) *rate.Limiter {
	if limiters.perHost == nil {
		limiters.perHost = map[string]*rate.Limiter{}
	}
	rl, ok := limiters.perHost[host]
	if !ok {
		rl = rate.NewLimiter(rate.Limit(limiters.RPS), limiters.Burst)
		limiters.perHost[host] = rl
	}
	return rl
}

func (limiters *RateLimiters) adjust(host string, by float64, verb string) {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()

	limiter := limiters.limiter(host)
	oldLimit := float64(limiter.Limit())
	newLimit := limiters.clip(oldLimit * by)
	if oldLimit != newLimit && limiters.Logger != nil {
		limiters.Logger.Log("info", verb+" rate limit", "host", host, "limit", strconv.FormatFloat(newLimit, 'f', 2, 64))
	}
	limiter.SetLimit(rate.Limit(newLimit))
}

func (limiters *RateLimiters) backOff(host string) {
	limiters.adjust(host, 1/backOffBy, "reducing")
}

// Recover bumps the limit for host back up towards RPS.
func (limiters *RateLimiters) Recover(host string) {
	limiters.adjust(host, recoverBy, "increasing")
}

// Limit returns the current limit for host, in requests per second.
func (limiters *RateLimiters) Limit(host string) float64 {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()
	return float64(limiters.limiter(host).Limit())
}

// RoundTripper returns a Transport delivering through rt, limited for
// host.
func (limiters *RateLimiters) RoundTripper(rt Transport, host string) Transport {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()

	return &roundTripRateLimiter{
		rl:   limiters.limiter(host),
		tx:   rt,
		host: host,
		ls:   limiters,
	}
}

type roundTripRateLimiter struct {
	rl   *rate.Limiter
	tx   Transport
	host string
	ls   *RateLimiters
}

func (t *roundTripRateLimiter) RoundTrip(r *http.Request) (*http.Response, error) {
	// Wait errors out if the request cannot be let through within
	// the context's deadline, rather than waiting for it to pass.
	if err := t.rl.Wait(r.Context()); err != nil {
		return nil, errors.Wrap(err, "rate limited")
	}
	resp, err := t.tx.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		t.ls.backOff(t.host)
	} else if resp.StatusCode < 400 {
		t.ls.Recover(t.host)
	}
	return resp, err
}
