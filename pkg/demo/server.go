package demo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	api "github.com/bifrostrpc/bifrost/pkg/http"
	bifrostmetrics "github.com/bifrostrpc/bifrost/pkg/metrics"
)

// SessionCookie carries the session ID of a logged-in user.
const SessionCookie = "session"

var (
	requestDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "bifrost",
		Subsystem: "demo",
		Name:      "request_duration_seconds",
		Help:      "Time (in seconds) spent serving calls.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{bifrostmetrics.LabelMethod, bifrostmetrics.LabelSuccess})
)

// args are the params of a call, still encoded.
type args map[string]json.RawMessage

// get decodes the named argument into dest. Every argument of the
// demo methods is required.
func (a args) get(method, name string, dest interface{}) error {
	raw, ok := a[name]
	if !ok {
		return api.MakeArgumentError(errors.Errorf("%s: %s is required", method, name))
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return api.MakeArgumentError(errors.Wrapf(err, "%s: %s", method, name))
	}
	return nil
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, a args) (interface{}, error)

type server struct {
	svc     *Service
	logger  log.Logger
	methods map[string]handlerFunc
}

// NewHandler serves the demo methods on the Call route of r.
func NewHandler(svc *Service, r *mux.Router, logger log.Logger) http.Handler {
	s := server{
		svc:    svc,
		logger: logger,
	}
	s.methods = map[string]handlerFunc{
		"get_reversed": s.getReversed,
		"get_pets":     s.getPets,
		"check_pets":   s.checkPets,
		"login":        s.login,
		"whoami":       s.whoami,
		"logout":       s.logout,
	}
	r.Get(api.Call).HandlerFunc(s.call)
	return r
}

func (s server) call(w http.ResponseWriter, r *http.Request) {
	method := api.MethodName(r)
	var err error
	defer func(begin time.Time) {
		requestDuration.With(
			bifrostmetrics.LabelMethod, method,
			bifrostmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())

	handle, ok := s.methods[method]
	if !ok {
		err = api.MakeMethodNotFound(method)
		api.ErrorResponse(w, r, err)
		return
	}
	a := args{}
	if err = json.NewDecoder(r.Body).Decode(&a); err != nil {
		err = api.MakeArgumentError(errors.Wrap(err, "params must be a JSON object"))
		api.ErrorResponse(w, r, err)
		return
	}
	var result interface{}
	if result, err = handle(w, r, a); err != nil {
		s.logger.Log("method", method, "err", err)
		api.ErrorResponse(w, r, err)
		return
	}
	api.JSONResponse(w, r, result)
}

func (s server) getReversed(w http.ResponseWriter, r *http.Request, a args) (interface{}, error) {
	var input string
	if err := a.get("get_reversed", "input_", &input); err != nil {
		return nil, err
	}
	return s.svc.GetReversed(input), nil
}

func (s server) getPets(w http.ResponseWriter, r *http.Request, a args) (interface{}, error) {
	return s.svc.GetPets(), nil
}

func (s server) checkPets(w http.ResponseWriter, r *http.Request, a args) (interface{}, error) {
	var pets map[string]Pet
	if err := a.get("check_pets", "pets", &pets); err != nil {
		return nil, err
	}
	return s.svc.CheckPets(pets), nil
}

func (s server) login(w http.ResponseWriter, r *http.Request, a args) (interface{}, error) {
	var username, password string
	if err := a.get("login", "username", &username); err != nil {
		return nil, err
	}
	if err := a.get("login", "password", &password); err != nil {
		return nil, err
	}
	result, id := s.svc.Login(username, password)
	if id != "" {
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: id, Path: "/", HttpOnly: true})
	}
	return result, nil
}

func (s server) whoami(w http.ResponseWriter, r *http.Request, a args) (interface{}, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, api.ErrorUnauthorized
	}
	name, ok := s.svc.Whoami(c.Value)
	if !ok {
		return nil, api.ErrorUnauthorized
	}
	return name, nil
}

func (s server) logout(w http.ResponseWriter, r *http.Request, a args) (interface{}, error) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.svc.Logout(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	return nil, nil
}
